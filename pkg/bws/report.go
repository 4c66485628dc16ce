package bws

import (
	"bufio"
	"fmt"
	"io"

	"github.com/example/tts-survey-eval/pkg/survey"
)

func writeTable(w *bufio.Writer, header string, ns NetScores) {
	fmt.Fprintf(w, "Voice System\t%s\n", header)
	for _, s := range survey.Systems {
		fmt.Fprintf(w, "%s\t%d\n", s.Label(), ns[s])
	}
	w.WriteString("\n")
}

// WriteScalingReport renders per-question and aggregated group net scores.
func WriteScalingReport(out io.Writer, questions []QuestionScore, groups []GroupScore) error {
	w := bufio.NewWriter(out)
	for _, q := range questions {
		fmt.Fprintf(w, "%s - %s (%s)\n", q.Question.ID, q.Question.Emotion, q.Question.Congruence)
		writeTable(w, "Best - Worst (Net Score)", q.Scores)
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s - Aggregated MaxDiff Net Scores\n", g.Group.Name)
		writeTable(w, "Best - Worst (Net Score)", g.Scores)
	}
	return w.Flush()
}

// DemographicSection is the stratified report of one demographic column.
type DemographicSection struct {
	Demographic survey.Demographic
	Strata      []Stratum
}

// WriteDemographicReport renders raw best-worst scores per stratum.
func WriteDemographicReport(out io.Writer, sections []DemographicSection) error {
	w := bufio.NewWriter(out)
	for _, sec := range sections {
		col := sec.Demographic.Column
		fmt.Fprintf(w, "Demographic Analysis by %s (Raw Best-Worst Scores)\n", col)
		w.WriteString("===========================================================\n\n")
		for _, st := range sec.Strata {
			fmt.Fprintf(w, "%s: %s (N=%d)\n\n", col, st.Label, st.N)
			for _, g := range st.Groups {
				fmt.Fprintf(w, "%s Emotion Raw Scores:\n", g.Group.Name)
				writeTable(w, "Score", g.Scores)
			}
			w.WriteString("Overall Raw Scores per Voice System:\n")
			writeTable(w, "Overall Score", st.Overall)
			w.WriteString("-----------------------------------\n")
		}
		w.WriteString("\n")
	}
	return w.Flush()
}

package analyses

import (
	"context"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/metrics"
	"github.com/example/tts-survey-eval/pkg/survey"
)

// GenderCell is the best/worst by male/female test of one system within one emotion.
type GenderCell struct {
	Emotion survey.Emotion
	System  survey.System
	// Table rows are best and worst, columns male and female.
	Table [2][2]int
	evaluation.ContingencyResult
	PAdjusted float64
}

// Significant reports whether the Holm-adjusted p is below alpha.
func (c GenderCell) Significant(alpha float64) bool { return c.PAdjusted < alpha }

// ChiSquareResult holds the sixteen emotion by system tests.
type ChiSquareResult struct {
	Alpha float64
	Cells []GenderCell
}

// genderTable counts how often sys was picked best and worst on questions by
// male and female participants.
func genderTable(responses []survey.Response, questions []string, sys survey.System) [2][2]int {
	var tbl [2][2]int
	for _, r := range responses {
		var col int
		switch r.Gender {
		case 1:
			col = 0
		case 2:
			col = 1
		default:
			continue
		}
		for _, q := range questions {
			c, ok := r.Choices[q]
			if !ok {
				continue
			}
			if c.Best == sys {
				tbl[0][col]++
			}
			if c.Worst == sys {
				tbl[1][col]++
			}
		}
	}
	return tbl
}

// ChiSquareGender tests, for every emotion and system, whether best and worst
// picks are associated with gender. Tables with a small expected count use
// Fisher's exact test. p-values are Holm-adjusted across all tests.
func ChiSquareGender(ctx context.Context, env *Env) (*ChiSquareResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}

	res := &ChiSquareResult{Alpha: env.alpha()}
	var raw []float64
	for _, e := range survey.Emotions {
		qs := survey.QuestionsFor(e)
		for _, sys := range survey.Systems {
			tbl := genderTable(ds.Responses, qs, sys)
			ct, err := evaluation.IndependenceTest([][]float64{
				{float64(tbl[0][0]), float64(tbl[0][1])},
				{float64(tbl[1][0]), float64(tbl[1][1])},
			}, env.Config.MinExpected)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", e, sys, err)
			}
			metrics.RecordTest("chi-square-gender", ct.Test)
			env.Logger.Debug("Contingency test computed",
				zap.String("emotion", string(e)),
				zap.String("system", sys.Label()),
				zap.String("test", ct.Test),
				zap.Float64("p", ct.P))
			res.Cells = append(res.Cells, GenderCell{Emotion: e, System: sys, Table: tbl, ContingencyResult: ct})
			raw = append(raw, ct.P)
		}
	}
	for i, p := range evaluation.Adjust(env.Config.Statistics.MultipleComparisons, raw) {
		res.Cells[i].PAdjusted = p
	}
	return res, nil
}

// Render prints one line per test.
func (r *ChiSquareResult) Render(w io.Writer) error {
	for _, c := range r.Cells {
		mark := ""
		if c.Significant(r.Alpha) {
			mark = "  *sig*"
		}
		stat := ""
		if !math.IsNaN(c.Stat) {
			stat = fmt.Sprintf(" | chi2 = %.3f, V = %.3f", c.Stat, c.CramersV)
		}
		if _, err := fmt.Fprintf(w, "%-10s | %-10s | %-12s | p_adj = %.4f%s%s\n",
			c.Emotion, c.System.Label(), c.Test, c.PAdjusted, stat, mark); err != nil {
			return err
		}
	}
	return nil
}

package analyses

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/bws"
	"github.com/example/tts-survey-eval/pkg/survey"
)

// OutputFile is one written output with its row count.
type OutputFile struct {
	Artifact *evaluation.Artifact
	Rows     int
}

// LongRowsResult lists the long-format files that were written.
type LongRowsResult struct {
	Files []OutputFile
}

// GenerateLongRows writes the full long-format file and one file per congruence condition.
func GenerateLongRows(ctx context.Context, env *Env) (*LongRowsResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	recs := survey.ToLong(ds)

	files := env.Config.Files
	outputs := []struct {
		name string
		recs []survey.LongRecord
	}{
		{files.Long, recs},
		{files.Congruent, survey.FilterCongruence(recs, survey.Congruent)},
		{files.Incongruent, survey.FilterCongruence(recs, survey.Incongruent)},
	}

	res := &LongRowsResult{}
	for _, out := range outputs {
		recs := out.recs
		a, err := env.Outputs.Write(ctx, out.name, func(w io.Writer) error {
			return survey.WriteLongCSV(w, recs)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", out.name, err)
		}
		env.Logger.Debug("Long-format file written", zap.String("file", a.Path), zap.Int("rows", len(recs)))
		res.Files = append(res.Files, OutputFile{Artifact: a, Rows: len(recs)})
	}
	return res, nil
}

// Render prints where the files went.
func (r *LongRowsResult) Render(w io.Writer) error {
	for _, f := range r.Files {
		if _, err := fmt.Fprintf(w, "Wrote %d long-format rows to %s.\n", f.Rows, f.Artifact.Path); err != nil {
			return err
		}
	}
	return nil
}

// ScalingResult holds the per-question and per-group net scores.
type ScalingResult struct {
	Questions []bws.QuestionScore
	Groups    []bws.GroupScore
	Artifact  *evaluation.Artifact
}

// BestWorstScaling scores every question and the eight emotion/congruence
// groups and writes the scaling report.
func BestWorstScaling(ctx context.Context, env *Env) (*ScalingResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	scoring, err := env.scoring()
	if err != nil {
		return nil, err
	}
	res := &ScalingResult{
		Questions: bws.PerQuestion(ds),
		Groups:    bws.PerGroup(ds.Responses, bws.EmotionCongruenceGroups(), scoring),
	}
	res.Artifact, err = env.Outputs.Write(ctx, env.Config.Files.ScalingReport, func(w io.Writer) error {
		return bws.WriteScalingReport(w, res.Questions, res.Groups)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write the scaling report: %w", err)
	}
	return res, nil
}

// Render prints the aggregated group scores and the report location.
func (r *ScalingResult) Render(w io.Writer) error {
	if err := bws.WriteScalingReport(w, nil, r.Groups); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "All results have been saved to %s.\n", r.Artifact.Path)
	return err
}

// DemographicResult holds the stratified net scores.
type DemographicResult struct {
	Sections []bws.DemographicSection
	Artifact *evaluation.Artifact
}

// DemographicBWS scores the four emotions separately for every gender, age
// group and proficiency level. Levels nobody reported still get a zero row.
// Only congruent questions count unless the flipped scoring is selected.
func DemographicBWS(ctx context.Context, env *Env) (*DemographicResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	scoring, err := env.scoring()
	if err != nil {
		return nil, err
	}
	groups := bws.DemographicGroups(scoring)
	res := &DemographicResult{}
	for _, d := range survey.Demographics {
		res.Sections = append(res.Sections, bws.DemographicSection{
			Demographic: d,
			Strata:      bws.Stratify(ds, d, groups, scoring),
		})
	}
	res.Artifact, err = env.Outputs.Write(ctx, env.Config.Files.DemographicReport, func(w io.Writer) error {
		return bws.WriteDemographicReport(w, res.Sections)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write the demographic report: %w", err)
	}
	return res, nil
}

// Render prints the stratum sizes and the report location.
func (r *DemographicResult) Render(w io.Writer) error {
	for _, sec := range r.Sections {
		fmt.Fprintf(w, "%s:", sec.Demographic.Column)
		for _, st := range sec.Strata {
			fmt.Fprintf(w, " %s (N=%d)", st.Label, st.N)
		}
		fmt.Fprintln(w)
	}
	_, err := fmt.Fprintf(w, "Demographic analysis results saved to %s.\n", r.Artifact.Path)
	return err
}

package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/metrics"
	"github.com/example/tts-survey-eval/pkg/survey"
)

// ProficiencyEffect is one proficiency contrast against the reference level.
type ProficiencyEffect struct {
	Emotion   survey.Emotion
	System    survey.System
	Reference string
	Level     string
	evaluation.GEECoef
	PAdjusted float64
}

// Contrast names the coefficient the way a treatment-coded model labels it.
func (e ProficiencyEffect) Contrast() string {
	return fmt.Sprintf("proficiency[T.%s]", e.Level)
}

// LogitResult holds every fitted contrast.
type LogitResult struct {
	Alpha   float64
	Effects []ProficiencyEffect
	// Skipped counts emotion/system combinations with fewer than two levels.
	Skipped int
	// Failed counts combinations whose model could not be fitted.
	Failed int
}

// proficiencyDesign builds the long-format outcome, design matrix and cluster
// ids for sys within the questions of one emotion. Participants with an
// unknown proficiency code are left out. The lowest level present is the
// reference category.
func proficiencyDesign(responses []survey.Response, questions []string, sys survey.System) (y []float64, x *mat.Dense, groups []int, levels []int) {
	present := make(map[int]bool)
	for _, r := range responses {
		if _, ok := survey.Proficiency.Label(r.Proficiency); ok {
			present[r.Proficiency] = true
		}
	}
	for _, code := range survey.Proficiency.Codes() {
		if present[code] {
			levels = append(levels, code)
		}
	}
	if len(levels) < 2 {
		return nil, nil, nil, levels
	}
	col := make(map[int]int, len(levels))
	for j, code := range levels[1:] {
		col[code] = j + 1
	}

	var data []float64
	for _, r := range responses {
		if !present[r.Proficiency] {
			continue
		}
		for _, q := range questions {
			c, ok := r.Choices[q]
			if !ok {
				continue
			}
			row := make([]float64, len(levels))
			row[0] = 1
			if j, ok := col[r.Proficiency]; ok {
				row[j] = 1
			}
			data = append(data, row...)
			v := 0.0
			if c.Best == sys {
				v = 1
			}
			y = append(y, v)
			groups = append(groups, r.Participant)
		}
	}
	return y, mat.NewDense(len(y), len(levels), data), groups, levels
}

// LogitProficiency fits, for every emotion and system, a logistic GEE of
// "chosen as best" on English proficiency with participants as clusters and
// an exchangeable working correlation. Contrast p-values are Holm-adjusted.
func LogitProficiency(ctx context.Context, env *Env) (*LogitResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	opts := evaluation.GEEOptions{Level: env.Config.Statistics.ConfidenceLevel}
	res := &LogitResult{Alpha: env.alpha()}

	for _, e := range survey.Emotions {
		qs := survey.QuestionsFor(e)
		for _, sys := range survey.Systems {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			y, x, groups, levels := proficiencyDesign(ds.Responses, qs, sys)
			if len(levels) < 2 {
				res.Skipped++
				continue
			}
			names := make([]string, len(levels))
			names[0] = "Intercept"
			for j, code := range levels[1:] {
				names[j+1], _ = survey.Proficiency.Label(code)
			}

			logger := env.Logger.With(zap.String("emotion", string(e)), zap.String("system", sys.Label()))
			fit, err := evaluation.GEELogit(y, x, names, groups, opts)
			switch {
			case errors.Is(err, evaluation.ErrSingular), errors.Is(err, evaluation.ErrNotConverged), errors.Is(err, evaluation.ErrInsufficientData):
				logger.Warn("Skipping proficiency model", zap.Error(err))
				res.Failed++
				continue
			case err != nil:
				return nil, fmt.Errorf("%s/%s: %w", e, sys, err)
			}
			if !fit.Converged {
				logger.Warn("Proficiency model did not converge", zap.Int("iterations", fit.Iterations))
			}
			metrics.RecordTest("logit-proficiency", "gee")

			ref, _ := survey.Proficiency.Label(levels[0])
			for _, c := range fit.Coefs[1:] {
				res.Effects = append(res.Effects, ProficiencyEffect{
					Emotion: e, System: sys, Reference: ref, Level: c.Name, GEECoef: c,
				})
			}
		}
	}

	raw := make([]float64, len(res.Effects))
	for i, eff := range res.Effects {
		raw[i] = eff.P
	}
	for i, p := range evaluation.Adjust(env.Config.Statistics.MultipleComparisons, raw) {
		res.Effects[i].PAdjusted = p
	}
	return res, nil
}

// Render prints the test counts and the significant effects.
func (r *LogitResult) Render(w io.Writer) error {
	if len(r.Effects) == 0 {
		_, err := fmt.Fprintln(w, "No valid tests were run.")
		return err
	}
	fmt.Fprintf(w, "\nTests performed: %d\n", len(r.Effects))
	fmt.Fprintf(w, "Combinations skipped (only one proficiency level present): %d\n", r.Skipped)
	if r.Failed > 0 {
		fmt.Fprintf(w, "Combinations without a fitted model: %d\n", r.Failed)
	}
	fmt.Fprintln(w)

	var sig []ProficiencyEffect
	for _, e := range r.Effects {
		if e.PAdjusted < r.Alpha {
			sig = append(sig, e)
		}
	}
	if len(sig) == 0 {
		_, err := fmt.Fprintln(w, "No Holm-significant proficiency effects found.")
		return err
	}
	fmt.Fprintf(w, "Significant proficiency effects (Holm-adjusted p < %g):\n", r.Alpha)
	for _, e := range sig {
		if _, err := fmt.Fprintf(w, "%-10s | %-10s | %-22s β = %+.3f (%g%% CI %.2f…%.2f) | p_adj = %.4f\n",
			e.Emotion, e.System.Label(), e.Contrast(), e.Coef, 100*e.CI.Level, e.CI.LowerBound, e.CI.UpperBound, e.PAdjusted); err != nil {
			return err
		}
	}
	return nil
}

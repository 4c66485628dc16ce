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

// testLog records which tests could be computed. A test that fails on
// degenerate input is logged and noted instead of aborting the analysis.
type testLog struct {
	analysis string
	logger   *zap.Logger
	notes    []string
}

func newTestLog(env *Env, analysis string) *testLog {
	return &testLog{analysis: analysis, logger: env.Logger.With(zap.String("analysis", analysis))}
}

func (t *testLog) ok(test string, err error) bool {
	if err == nil {
		metrics.RecordTest(t.analysis, test)
		return true
	}
	t.logger.Warn("Test not computable", zap.String("test", test), zap.Error(err))
	t.notes = append(t.notes, fmt.Sprintf("%s not computable: %v", test, err))
	return false
}

// GroupSummary describes the ratings of one group.
type GroupSummary struct {
	Label string
	evaluation.DescriptiveStats
	// CI is the t interval of the mean, NaN for fewer than three ratings.
	CI evaluation.ConfidenceInterval
}

func summarize(label string, values []float64, level float64) GroupSummary {
	gs := GroupSummary{Label: label, DescriptiveStats: evaluation.Describe(values)}
	gs.CI = evaluation.ConfidenceInterval{Level: level, LowerBound: math.NaN(), UpperBound: math.NaN()}
	if len(values) >= 3 {
		gs.CI = evaluation.MeanCI(values, level)
	}
	return gs
}

// NamedShapiro is the normality test of one group.
type NamedShapiro struct {
	Label string
	evaluation.ShapiroResult
}

// CliffsPair is Cliff's delta between two groups.
type CliffsPair struct {
	A, B      string
	Delta     float64
	Magnitude string
}

// RealismANOVAResult compares realism ratings across age groups.
type RealismANOVAResult struct {
	Alpha   float64
	Groups  []GroupSummary
	Shapiro []NamedShapiro
	Levene  *evaluation.FTestResult
	// Welch is set when normality or equal variances were rejected.
	Welch   bool
	Omnibus *evaluation.FTestResult
	Kruskal *evaluation.HTestResult
	Cliffs  []CliffsPair
	Notes   []string
}

// RealismANOVA describes the realism rating per age group, checks normality
// and homogeneity of variances, then runs a classic or Welch ANOVA, a
// Kruskal-Wallis test and Cliff's delta for every pair of groups.
func RealismANOVA(ctx context.Context, env *Env) (*RealismANOVAResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	groups := survey.RealismBy(ds, survey.AgeGroup)
	if len(groups) == 0 {
		return nil, fmt.Errorf("no realism ratings with a known age group: %w", evaluation.ErrInsufficientData)
	}
	st := env.Config.Statistics
	tl := newTestLog(env, "realism-anova")
	res := &RealismANOVAResult{Alpha: st.SignificanceLevel}

	values := make([][]float64, len(groups))
	for i, g := range groups {
		values[i] = g.Values
		res.Groups = append(res.Groups, summarize(g.Label, g.Values, st.ConfidenceLevel))
	}

	normal := true
	for _, g := range groups {
		if len(g.Values) <= 2 {
			continue
		}
		sw, err := evaluation.ShapiroWilk(g.Values)
		if !tl.ok("Shapiro-Wilk "+g.Label, err) {
			continue
		}
		res.Shapiro = append(res.Shapiro, NamedShapiro{Label: g.Label, ShapiroResult: sw})
		normal = normal && sw.Normal(st.SignificanceLevel)
	}

	equalVar := false
	if lv, err := evaluation.Levene(evaluation.CenterMedian, values...); tl.ok("Levene", err) {
		res.Levene = &lv
		equalVar = lv.P > st.SignificanceLevel
	}

	if normal && equalVar {
		if f, err := evaluation.OneWayANOVA(values...); tl.ok("ANOVA", err) {
			res.Omnibus = &f
		}
	} else {
		res.Welch = true
		if f, err := evaluation.WelchANOVA(values...); tl.ok("Welch ANOVA", err) {
			res.Omnibus = &f
		}
	}

	if h, err := evaluation.KruskalWallis(values...); tl.ok("Kruskal-Wallis", err) {
		res.Kruskal = &h
	}

	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			d := evaluation.CliffsDelta(groups[i].Values, groups[j].Values)
			res.Cliffs = append(res.Cliffs, CliffsPair{
				A: groups[i].Label, B: groups[j].Label, Delta: d, Magnitude: evaluation.CliffsMagnitude(d),
			})
		}
	}
	res.Notes = tl.notes
	return res, nil
}

// Render prints the descriptive table followed by the tests.
func (r *RealismANOVAResult) Render(w io.Writer) error {
	fmt.Fprintln(w, "\nDescriptive statistics")
	fmt.Fprintf(w, "%-7s %4s %6s %6s %6s %6s %7s %7s\n", "Group", "N", "Mean", "SD", "Median", "IQR", "CI_low", "CI_high")
	for _, g := range r.Groups {
		fmt.Fprintf(w, "%-7s %4d %6.2f %6.2f %6.2f %6.2f %7.2f %7.2f\n",
			g.Label, g.Count, g.Mean, g.StdDev, g.Median, g.IQR, g.CI.LowerBound, g.CI.UpperBound)
	}

	fmt.Fprint(w, "\nShapiro-Wilk p-values:")
	for _, s := range r.Shapiro {
		fmt.Fprintf(w, " %s=%.3f", s.Label, s.P)
	}
	fmt.Fprintln(w)
	if r.Levene != nil {
		fmt.Fprintf(w, "Levene p-value: %.3f\n", r.Levene.P)
	}

	if f := r.Omnibus; f != nil {
		if r.Welch {
			fmt.Fprintf(w, "\nWelch ANOVA        F = %.3f   p = %.3f   η²p = %.3f\n", f.F, f.P, f.EtaSquared)
		} else {
			fmt.Fprintf(w, "\nClassic ANOVA      F = %.3f   p = %.3f   η² = %.3f\n", f.F, f.P, f.EtaSquared)
		}
	}
	if h := r.Kruskal; h != nil {
		fmt.Fprintf(w, "Kruskal-Wallis     H = %.3f   p = %.3f\n", h.H, h.P)
	}

	if len(r.Cliffs) > 0 {
		fmt.Fprintln(w, "\nCliff's delta per pair")
		fmt.Fprintf(w, "%-7s %-7s %8s  %s\n", "A", "B", "delta", "magnitude")
		for _, c := range r.Cliffs {
			fmt.Fprintf(w, "%-7s %-7s %8.3f  %s\n", c.A, c.B, c.Delta, c.Magnitude)
		}
	}
	return renderNotes(w, r.Notes)
}

func renderNotes(w io.Writer, notes []string) error {
	for _, n := range notes {
		if _, err := fmt.Fprintf(w, "Note: %s\n", n); err != nil {
			return err
		}
	}
	return nil
}

// RealismGenderResult compares the realism ratings of men and women.
type RealismGenderResult struct {
	Men, Women   GroupSummary
	ShapiroMen   *evaluation.ShapiroResult
	ShapiroWomen *evaluation.ShapiroResult
	Levene       *evaluation.FTestResult
	Welch        *evaluation.TTestResult
	// WelchANOVA uses every gender group, including diverse.
	WelchANOVA  *evaluation.FTestResult
	CohensD     float64
	MannWhitney *evaluation.MannWhitneyResult
	TOST        *evaluation.TOSTResult
	BF10        float64
	PriorScale  float64
	Notes       []string
}

// RealismGender compares realism between male and female participants with
// parametric, rank-based, equivalence and Bayesian tests.
func RealismGender(ctx context.Context, env *Env) (*RealismGenderResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	cfg := env.Config
	level := cfg.Statistics.ConfidenceLevel
	tl := newTestLog(env, "realism-gender")

	m := survey.RealismFor(ds, survey.Gender, 1)
	f := survey.RealismFor(ds, survey.Gender, 2)
	res := &RealismGenderResult{
		Men:        summarize("Men", m, level),
		Women:      summarize("Women", f, level),
		CohensD:    evaluation.CohensD(m, f),
		BF10:       math.NaN(),
		PriorScale: cfg.BayesPriorScale,
	}

	if sw, err := evaluation.ShapiroWilk(m); tl.ok("Shapiro-Wilk men", err) {
		res.ShapiroMen = &sw
	}
	if sw, err := evaluation.ShapiroWilk(f); tl.ok("Shapiro-Wilk women", err) {
		res.ShapiroWomen = &sw
	}
	if lv, err := evaluation.Levene(evaluation.CenterMedian, m, f); tl.ok("Levene", err) {
		res.Levene = &lv
	}
	if tt, err := evaluation.WelchTTest(m, f, level); tl.ok("Welch t-test", err) {
		res.Welch = &tt
		res.BF10 = evaluation.BayesFactorT(tt.T, len(m), len(f), cfg.BayesPriorScale)
	}

	var all [][]float64
	for _, g := range survey.RealismBy(ds, survey.Gender) {
		all = append(all, g.Values)
	}
	if wa, err := evaluation.WelchANOVA(all...); tl.ok("Welch ANOVA", err) {
		res.WelchANOVA = &wa
	}
	if mw, err := evaluation.MannWhitney(m, f); tl.ok("Mann-Whitney", err) {
		res.MannWhitney = &mw
	}
	if tost, err := evaluation.TOST(m, f, cfg.Equivalence.Low, cfg.Equivalence.High); tl.ok("TOST", err) {
		res.TOST = &tost
	}
	res.Notes = tl.notes
	return res, nil
}

// Render prints the tests in the order they were run.
func (r *RealismGenderResult) Render(w io.Writer) error {
	fmt.Fprintln(w, "Descriptives")
	for _, g := range []GroupSummary{r.Men, r.Women} {
		fmt.Fprintf(w, "  %-6s N = %d, M = %.3f, SD = %.3f, %g%% CI [%.3f, %.3f]\n",
			g.Label, g.Count, g.Mean, g.StdDev, 100*g.CI.Level, g.CI.LowerBound, g.CI.UpperBound)
	}

	fmt.Fprintln(w, "\nShapiro-Wilk (normality):")
	for _, s := range []struct {
		label string
		res   *evaluation.ShapiroResult
	}{{"Men", r.ShapiroMen}, {"Women", r.ShapiroWomen}} {
		if s.res != nil {
			fmt.Fprintf(w, "  %-6s: %.4g\n", s.label, s.res.P)
		}
	}
	if r.Levene != nil {
		fmt.Fprintf(w, "Levene (equal variances): %.4g\n", r.Levene.P)
	}

	if t := r.Welch; t != nil {
		fmt.Fprintf(w, "\nWelch t: t = %.2f, p = %.3f\n", t.T, t.P)
	}
	if r.WelchANOVA != nil {
		fmt.Fprintf(w, "Welch df (all gender groups): %.4f\n", r.WelchANOVA.DF2)
	}
	fmt.Fprintf(w, "\nCohen's d = %.2f  (small ≈ .20, medium ≈ .50, large ≈ .80)\n", r.CohensD)

	if mw := r.MannWhitney; mw != nil {
		fmt.Fprintf(w, "\nMann-Whitney U: U = %g, p = %.3f\n", mw.U, mw.P)
	}
	if t := r.TOST; t != nil {
		fmt.Fprintf(w, "\nTOST (Δ = %+.2f / %+.2f):\n", t.Low, t.High)
		fmt.Fprintf(w, "  p_low  = %.3f, p_high = %.3f, p = %.3f\n", t.PLow, t.PHigh, t.P)
	}

	if t := r.Welch; t != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%8s %8s %10s %8s %18s %8s %8s\n", "T", "dof", "alternative", "p-val", "CI", "cohen-d", "BF10")
		fmt.Fprintf(w, "%8.3f %8.3f %10s %8.4f %18s %8.3f %8.3f\n",
			t.T, t.DF, "two-sided", t.P, fmt.Sprintf("[%.2f, %.2f]", t.CI.LowerBound, t.CI.UpperBound), math.Abs(r.CohensD), r.BF10)
		fmt.Fprintf(w, "\nBayes factor (BF10, r = %g) = %.3f\n", r.PriorScale, r.BF10)
	}
	return renderNotes(w, r.Notes)
}

// WilcoxonRealismResult tests the realism rating against the scale midpoint.
type WilcoxonRealismResult struct {
	N        int
	Mean     float64
	SD       float64
	Midpoint float64
	Shapiro  *evaluation.ShapiroResult
	Test     *evaluation.WilcoxonResult
	// Z is recovered from the two-sided p; R = Z / sqrt(N).
	Z, R  float64
	Notes []string
}

// WilcoxonRealism runs a one-sample signed-rank test of the realism ratings
// against the scale midpoint.
func WilcoxonRealism(ctx context.Context, env *Env) (*WilcoxonRealismResult, error) {
	ds, err := env.Survey(ctx)
	if err != nil {
		return nil, err
	}
	values := survey.RealismValues(ds)
	d := evaluation.Describe(values)
	tl := newTestLog(env, "wilcoxon-realism")
	res := &WilcoxonRealismResult{
		N:        len(values),
		Mean:     d.Mean,
		SD:       d.StdDev,
		Midpoint: env.Config.RealismMidpoint,
		Z:        math.NaN(),
		R:        math.NaN(),
	}
	if sw, err := evaluation.ShapiroWilk(values); tl.ok("Shapiro-Wilk", err) {
		res.Shapiro = &sw
	}
	if wt, err := evaluation.Wilcoxon(values, res.Midpoint); tl.ok("Wilcoxon", err) {
		res.Test = &wt
		res.Z = evaluation.ZFromP(wt.P)
		res.R = res.Z / math.Sqrt(float64(res.N))
	}
	res.Notes = tl.notes
	return res, nil
}

// Render prints the summary lines.
func (r *WilcoxonRealismResult) Render(w io.Writer) error {
	fmt.Fprintf(w, "n = %d,  mean = %.2f,  SD = %.2f\n", r.N, r.Mean, r.SD)
	if r.Shapiro != nil {
		fmt.Fprintf(w, "Shapiro p = %.4g\n", r.Shapiro.P)
	}
	if t := r.Test; t != nil {
		method := "normal approximation"
		if t.Exact {
			method = "exact"
		}
		fmt.Fprintf(w, "Wilcoxon (vs %g, %s): W = %.2f, z = %.2f, p = %.3f, r = %.2f\n",
			r.Midpoint, method, t.W, r.Z, t.P, r.R)
	}
	return renderNotes(w, r.Notes)
}

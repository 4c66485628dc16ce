package analyses

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/bws"
	"github.com/example/tts-survey-eval/pkg/cache"
	"github.com/example/tts-survey-eval/pkg/metrics"
	"github.com/example/tts-survey-eval/pkg/survey"
)

// pseudo p-values used for the Holm step on bootstrap decisions.
const (
	bootstrapSignificantP = 0.001
	bootstrapNullP        = 1
)

// BootstrapHeader is the column layout of the bootstrap result files.
var BootstrapHeader = []string{"Emotion", "System 1", "System 2", "Δ_Net", "CI_low", "CI_high", "Signifikant", "p_adjusted"}

// Comparison is the bootstrap interval for the mean net-score difference of
// two systems within one emotion. Skipped comparisons had too few pairs and
// carry no estimate.
type Comparison struct {
	Emotion     survey.Emotion `json:"emotion"`
	System1     string         `json:"system1"`
	System2     string         `json:"system2"`
	N           int            `json:"n"`
	Delta       float64        `json:"delta"`
	Low         float64        `json:"low"`
	High        float64        `json:"high"`
	Significant bool           `json:"significant"`
	PAdjusted   float64        `json:"pAdjusted"`
	Skipped     bool           `json:"skipped,omitempty"`
}

// BootstrapTable holds the comparisons of one congruence condition.
type BootstrapTable struct {
	Congruence  survey.Congruence    `json:"congruence"`
	Comparisons []Comparison         `json:"comparisons"`
	Artifact    *evaluation.Artifact `json:"-"`
}

// BootstrapResult holds both congruence conditions.
type BootstrapResult struct {
	Method evaluation.BootstrapMethod
	Reps   int
	Level  float64
	Tables []BootstrapTable
}

func readLongFile(path string) ([]survey.LongRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open long-format file: %w", err)
	}
	defer f.Close()
	recs, err := survey.ReadLongCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return recs, nil
}

// pairedNet returns the net scores of s1 and s2 for every participant that
// answered emotion e, in participant order.
func pairedNet(net map[bws.ParticipantKey]int, e survey.Emotion, s1, s2 survey.System) (a, b []float64) {
	for _, id := range bws.Participants(net, e) {
		a = append(a, float64(net[bws.ParticipantKey{Participant: id, System: s1, Emotion: e}]))
		b = append(b, float64(net[bws.ParticipantKey{Participant: id, System: s2, Emotion: e}]))
	}
	return a, b
}

// CompareSystems bootstraps the mean paired net-score difference for every
// emotion and pair of systems. Every comparison draws from its own generator
// seeded with seed, so comparisons run concurrently and reproducibly.
func CompareSystems(ctx context.Context, logger *zap.Logger, recs []survey.LongRecord, reps int, level float64, method evaluation.BootstrapMethod, seed uint64, adjust string) ([]Comparison, error) {
	net := bws.ParticipantNet(recs)

	var out []Comparison
	for _, e := range survey.Emotions {
		for i := 0; i < len(survey.Systems); i++ {
			for j := i + 1; j < len(survey.Systems); j++ {
				out = append(out, Comparison{
					Emotion: e,
					System1: survey.Systems[i].Label(),
					System2: survey.Systems[j].Label(),
				})
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range out {
		c := &out[i]
		g.Go(func() error {
			s1, _ := survey.ParseSystemLabel(c.System1)
			s2, _ := survey.ParseSystemLabel(c.System2)
			a, b := pairedNet(net, c.Emotion, s1, s2)
			c.N = len(a)

			r, err := evaluation.PairedMeanDiff(gctx, a, b, reps, level, method, evaluation.NewRand(seed))
			if errors.Is(err, evaluation.ErrInsufficientData) {
				logger.Warn("Skipping bootstrap comparison",
					zap.String("emotion", string(c.Emotion)),
					zap.String("system1", c.System1),
					zap.String("system2", c.System2),
					zap.Error(err))
				c.Skipped = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s %s vs %s: %w", c.Emotion, c.System1, c.System2, err)
			}
			metrics.RecordTest("bootstrap", string(method))
			c.Delta, c.Low, c.High = r.Estimate, r.CI.LowerBound, r.CI.UpperBound
			c.Significant = r.CI.Excludes(0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pvals := make([]float64, len(out))
	for i, c := range out {
		pvals[i] = bootstrapNullP
		if c.Significant {
			pvals[i] = bootstrapSignificantP
		}
	}
	for i, p := range evaluation.Adjust(adjust, pvals) {
		out[i].PAdjusted = p
	}
	return out, nil
}

// WriteBootstrapCSV writes comparisons in the bootstrap result layout.
func WriteBootstrapCSV(w io.Writer, comparisons []Comparison) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BootstrapHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, c := range comparisons {
		sig := "False"
		if c.Significant {
			sig = "True"
		}
		delta, low, high := f(c.Delta), f(c.Low), f(c.High)
		if c.Skipped {
			delta, low, high = "", "", ""
		}
		if err := cw.Write([]string{
			string(c.Emotion), c.System1, c.System2, delta, low, high, sig, f(c.PAdjusted),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AnalyseBootstrap reads the congruent and incongruent long-format files,
// computes per-participant net scores and bootstraps every system pair within
// every emotion. Tables are written as CSV.
func AnalyseBootstrap(ctx context.Context, env *Env) (*BootstrapResult, error) {
	cfg := env.Config
	st := cfg.Statistics
	method, err := evaluation.ParseBootstrapMethod(cfg.BootstrapMethod)
	if err != nil {
		return nil, err
	}
	res := &BootstrapResult{Method: method, Reps: st.BootstrapReps, Level: st.ConfidenceLevel}

	inputs := []struct {
		cong survey.Congruence
		in   string
		out  string
	}{
		{survey.Congruent, cfg.Files.Congruent, cfg.Files.BootstrapCongruent},
		{survey.Incongruent, cfg.Files.Incongruent, cfg.Files.BootstrapIncongruent},
	}
	for _, in := range inputs {
		path := env.Outputs.Path(in.in)
		if err := env.Outputs.RecordInput(path); err != nil {
			return nil, err
		}
		sum, _, err := evaluation.ComputeChecksum(path)
		if err != nil {
			return nil, err
		}
		key := cache.Key("bootstrap", sum, method, st.BootstrapReps, st.ConfidenceLevel, st.Seed, st.MultipleComparisons)
		comparisons, err := cache.Fetch(ctx, env.Cache, env.Logger, key, func() ([]Comparison, error) {
			recs, err := readLongFile(path)
			if err != nil {
				return nil, err
			}
			env.Logger.Info("Bootstrapping net-score differences",
				zap.String("congruence", string(in.cong)),
				zap.Int("records", len(recs)),
				zap.String("method", string(method)),
				zap.Int("reps", st.BootstrapReps))
			return CompareSystems(ctx, env.Logger, recs, st.BootstrapReps, st.ConfidenceLevel, method, st.Seed, st.MultipleComparisons)
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.cong, err)
		}

		table := BootstrapTable{Congruence: in.cong, Comparisons: comparisons}
		table.Artifact, err = env.Outputs.Write(ctx, in.out, func(w io.Writer) error {
			return WriteBootstrapCSV(w, comparisons)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", in.out, err)
		}
		res.Tables = append(res.Tables, table)
	}
	return res, nil
}

// Render prints one table per congruence condition.
func (r *BootstrapResult) Render(w io.Writer) error {
	for _, t := range r.Tables {
		fmt.Fprintf(w, "\nBootstrap results %s (%s, %d reps, %g%% CI):\n", t.Congruence, r.Method, r.Reps, 100*r.Level)
		fmt.Fprintf(w, "%-10s %-10s %-10s %4s %8s %8s %8s %-5s %10s\n",
			"Emotion", "System 1", "System 2", "N", "Δ_Net", "CI_low", "CI_high", "Sig", "p_adjusted")
		for _, c := range t.Comparisons {
			if c.Skipped {
				fmt.Fprintf(w, "%-10s %-10s %-10s %4d  skipped: too few participants\n", c.Emotion, c.System1, c.System2, c.N)
				continue
			}
			fmt.Fprintf(w, "%-10s %-10s %-10s %4d %8.3f %8.3f %8.3f %-5t %10.3f\n",
				c.Emotion, c.System1, c.System2, c.N, c.Delta, c.Low, c.High, c.Significant, c.PAdjusted)
		}
	}
	return nil
}

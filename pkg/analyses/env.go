// Package analyses implements the survey evaluations on top of the survey,
// bws and evaluation packages. Every analysis returns a result value that
// renders itself as a text report.
package analyses

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/bws"
	"github.com/example/tts-survey-eval/pkg/cache"
	"github.com/example/tts-survey-eval/pkg/config"
	"github.com/example/tts-survey-eval/pkg/metrics"
	"github.com/example/tts-survey-eval/pkg/survey"
)

// Report is a computed analysis that can print itself.
type Report interface {
	Render(w io.Writer) error
}

// Env carries everything an analysis needs: configuration, logging, the
// output store and the optional result cache. The survey export is loaded
// once and shared read-only between analyses.
type Env struct {
	Config   config.Config
	Logger   *zap.Logger
	Analyzer *evaluation.StatisticalAnalyzer
	Outputs  *evaluation.ReproducibilityManager
	Cache    cache.ResultCache

	mu       sync.Mutex
	dataset  *survey.Dataset
	checksum string
}

// NewEnv creates a new analysis environment writing outputs below cfg.OutputDir.
func NewEnv(logger *zap.Logger, cfg config.Config, rc cache.ResultCache) *Env {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rc == nil {
		rc = cache.NopCache{}
	}
	store := evaluation.NewFileSystemArtifactStore(logger, cfg.OutputDir)
	params := map[string]any{
		"confidenceLevel":   cfg.Statistics.ConfidenceLevel,
		"significanceLevel": cfg.Statistics.SignificanceLevel,
		"monteCarloPerms":   cfg.Statistics.MonteCarloPerms,
		"bootstrapReps":     cfg.Statistics.BootstrapReps,
		"bootstrapMethod":   cfg.BootstrapMethod,
		"scoring":           cfg.Scoring,
		"equivalence":       []float64{cfg.Equivalence.Low, cfg.Equivalence.High},
	}
	return &Env{
		Config:   cfg,
		Logger:   logger,
		Analyzer: evaluation.NewStatisticalAnalyzer(logger, cfg.Statistics),
		Outputs:  evaluation.NewReproducibilityManager(logger, store, cfg.Statistics.Seed, params),
		Cache:    rc,
	}
}

// Survey returns the loaded survey export, reading it on first use.
func (e *Env) Survey(ctx context.Context) (*survey.Dataset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dataset != nil {
		return e.dataset, nil
	}

	path := e.Config.Files.Survey
	ds, err := survey.LoadFile(ctx, path, survey.LoadOptions{Strict: e.Config.Strict, Logger: e.Logger})
	if err != nil {
		return nil, err
	}
	if len(ds.Responses) == 0 {
		return nil, fmt.Errorf("survey %s has no usable responses", path)
	}
	if err := e.Outputs.RecordInput(path); err != nil {
		return nil, err
	}
	sum, _, err := evaluation.ComputeChecksum(path)
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(len(ds.Responses), len(ds.Rejected))

	e.dataset = ds
	e.checksum = sum
	return ds, nil
}

// inputChecksum is the sha256 of the loaded survey export.
func (e *Env) inputChecksum() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checksum
}

func (e *Env) scoring() (bws.Scoring, error) {
	s, err := bws.ParseScoring(e.Config.Scoring)
	if err != nil {
		return "", err
	}
	if s == bws.ScoringFlipIncongruent {
		e.Logger.Warn("Using sign-flipped scoring for incongruent questions; whether this is the intended analysis is unresolved",
			zap.String("scoring", string(s)))
	}
	return s, nil
}

func (e *Env) alpha() float64 { return e.Config.Statistics.SignificanceLevel }

// Analysis is one named, runnable evaluation.
type Analysis struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env) (Report, error)
}

// Execute runs a, timing it and recording the outcome in the run metrics.
func (a Analysis) Execute(ctx context.Context, env *Env) (Report, error) {
	start := time.Now()
	logger := env.Logger.With(zap.String("analysis", a.Name))
	logger.Info("Running analysis")

	report, err := a.Run(ctx, env)
	elapsed := time.Since(start)
	metrics.ObserveAnalysis(a.Name, elapsed, err)
	if err != nil {
		logger.Error("Analysis failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	logger.Info("Analysis completed", zap.Duration("elapsed", elapsed))
	return report, nil
}

func wrap[R Report](fn func(context.Context, *Env) (R, error)) func(context.Context, *Env) (Report, error) {
	return func(ctx context.Context, env *Env) (Report, error) {
		r, err := fn(ctx, env)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Registry lists every analysis in report order.
var Registry = []Analysis{
	{Name: "long-rows", Description: "Reshape the survey into long-format best/worst records", Run: wrap(GenerateLongRows)},
	{Name: "bws", Description: "Net scores per question and emotion group", Run: wrap(BestWorstScaling)},
	{Name: "demographic-bws", Description: "Net scores stratified by gender, age group and proficiency", Run: wrap(DemographicBWS)},
	{Name: "chi-square-gender", Description: "Association of system choice with gender", Run: wrap(ChiSquareGender)},
	{Name: "friedman-gender", Description: "Friedman tests per gender, congruence and emotion", Run: wrap(FriedmanGender)},
	{Name: "logit-proficiency", Description: "Clustered logistic regression of best choice on English proficiency", Run: wrap(LogitProficiency)},
	{Name: "realism-anova", Description: "Realism rating across age groups", Run: wrap(RealismANOVA)},
	{Name: "realism-gender", Description: "Realism rating by gender", Run: wrap(RealismGender)},
	{Name: "wilcoxon-realism", Description: "Realism rating against the scale midpoint", Run: wrap(WilcoxonRealism)},
	{Name: "gender-boxplot", Description: "Boxplot of realism by gender", Run: wrap(GenderBoxplot)},
	{Name: "bootstrap", Description: "Bootstrap confidence intervals for net-score differences", Run: wrap(AnalyseBootstrap)},
}

// Lookup returns the analysis registered under name.
func Lookup(name string) (Analysis, bool) {
	for _, a := range Registry {
		if a.Name == name {
			return a, true
		}
	}
	return Analysis{}, false
}

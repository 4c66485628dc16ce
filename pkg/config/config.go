// Package config holds the tunable parameters of a survey evaluation run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/tts-survey-eval/evaluation"
	"github.com/example/tts-survey-eval/pkg/bws"
)

// Files names every input and output of the pipeline. Output names are
// relative to OutputDir.
type Files struct {
	Survey               string `yaml:"survey"`
	Long                 string `yaml:"long"`
	Congruent            string `yaml:"congruent"`
	Incongruent          string `yaml:"incongruent"`
	ScalingReport        string `yaml:"scaling_report"`
	DemographicReport    string `yaml:"demographic_report"`
	Boxplot              string `yaml:"boxplot"`
	BootstrapCongruent   string `yaml:"bootstrap_congruent"`
	BootstrapIncongruent string `yaml:"bootstrap_incongruent"`
}

// Equivalence bounds the TOST margin on the raw realism difference.
type Equivalence struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Plot configures the realism boxplot.
type Plot struct {
	DPI          int     `yaml:"dpi"`
	WidthInches  float64 `yaml:"width_inches"`
	HeightInches float64 `yaml:"height_inches"`
	FillColor    string  `yaml:"fill_color"`
}

// Redis enables the result cache when Addr is set.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Logging selects the zap logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full run configuration.
type Config struct {
	OutputDir       string                       `yaml:"output_dir"`
	Files           Files                        `yaml:"files"`
	Statistics      evaluation.StatisticalConfig `yaml:"statistics"`
	Equivalence     Equivalence                  `yaml:"equivalence"`
	BayesPriorScale float64                      `yaml:"bayes_prior_scale"`
	BootstrapMethod string                       `yaml:"bootstrap_method"`
	Scoring         string                       `yaml:"scoring"`
	// MinExpected is the smallest expected cell count for the chi-square test.
	MinExpected float64 `yaml:"min_expected"`
	// RealismMidpoint is the neutral point of the realism Likert scale.
	RealismMidpoint float64 `yaml:"realism_midpoint"`
	Strict          bool    `yaml:"strict"`
	Plot            Plot    `yaml:"plot"`
	Redis           Redis   `yaml:"redis"`
	MetricsFile     string  `yaml:"metrics_file"`
	// MetricsAddr serves /metrics for the duration of a run when set.
	MetricsAddr string  `yaml:"metrics_addr"`
	Logging     Logging `yaml:"logging"`
}

// Default returns the configuration the survey was analysed with.
func Default() Config {
	return Config{
		OutputDir: ".",
		Files: Files{
			Survey:               "Survey_Entries.csv",
			Long:                 "bws_long.csv",
			Congruent:            "bws_congruent.csv",
			Incongruent:          "bws_incongruent.csv",
			ScalingReport:        "best_worst_scalling.txt",
			DemographicReport:    "demographic_bws_raw_results.txt",
			Boxplot:              "gender_realism_boxplot.png",
			BootstrapCongruent:   "bootstrap_congruent_results.csv",
			BootstrapIncongruent: "bootstrap_incongruent_results.csv",
		},
		Statistics:      evaluation.DefaultStatisticalConfig(),
		Equivalence:     Equivalence{Low: -0.30, High: 0.30},
		BayesPriorScale: 0.707,
		BootstrapMethod: string(evaluation.BootstrapBCa),
		Scoring:         string(bws.ScoringPlain),
		MinExpected:     5,
		RealismMidpoint: 3,
		Plot: Plot{
			DPI:          1200,
			WidthInches:  5,
			HeightInches: 3,
			FillColor:    "#B1B3EB",
		},
		Redis:   Redis{TTL: 24 * time.Hour},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return cfg, nil
}

// WriteDefault writes the default configuration as YAML to path.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create the config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	s := c.Statistics
	if s.ConfidenceLevel <= 0 || s.ConfidenceLevel >= 1 {
		errs = append(errs, fmt.Errorf("statistics.confidence_level must be in (0,1), got %g", s.ConfidenceLevel))
	}
	if s.SignificanceLevel <= 0 || s.SignificanceLevel >= 1 {
		errs = append(errs, fmt.Errorf("statistics.significance_level must be in (0,1), got %g", s.SignificanceLevel))
	}
	if s.MonteCarloPerms <= 0 {
		errs = append(errs, fmt.Errorf("statistics.monte_carlo_permutations must be positive, got %d", s.MonteCarloPerms))
	}
	if s.BootstrapReps <= 0 {
		errs = append(errs, fmt.Errorf("statistics.bootstrap_reps must be positive, got %d", s.BootstrapReps))
	}
	for _, m := range []string{s.MultipleComparisons, s.PostHocAdjust} {
		switch m {
		case "holm", "bonferroni", "none":
		default:
			errs = append(errs, fmt.Errorf("unknown p-value adjustment %q", m))
		}
	}
	if c.Equivalence.Low >= c.Equivalence.High {
		errs = append(errs, fmt.Errorf("equivalence bounds must satisfy low < high, got [%g, %g]", c.Equivalence.Low, c.Equivalence.High))
	}
	if c.BayesPriorScale <= 0 {
		errs = append(errs, fmt.Errorf("bayes_prior_scale must be positive, got %g", c.BayesPriorScale))
	}
	if _, err := evaluation.ParseBootstrapMethod(c.BootstrapMethod); err != nil {
		errs = append(errs, err)
	}
	if _, err := bws.ParseScoring(c.Scoring); err != nil {
		errs = append(errs, err)
	}
	if c.Plot.DPI <= 0 || c.Plot.WidthInches <= 0 || c.Plot.HeightInches <= 0 {
		errs = append(errs, fmt.Errorf("plot dimensions must be positive"))
	}
	if c.Files.Survey == "" {
		errs = append(errs, fmt.Errorf("files.survey must be set"))
	}
	return errors.Join(errs...)
}

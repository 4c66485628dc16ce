package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(2025), cfg.Statistics.Seed)
	assert.Equal(t, 10000, cfg.Statistics.MonteCarloPerms)
	assert.Equal(t, 5000, cfg.Statistics.BootstrapReps)
	assert.Equal(t, 1200, cfg.Plot.DPI)
	assert.Equal(t, -0.30, cfg.Equivalence.Low)
	assert.Equal(t, "Survey_Entries.csv", cfg.Files.Survey)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveyeval.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir: out
statistics:
  seed: 7
  bootstrap_reps: 200
bootstrap_method: percentile
plot:
  dpi: 300
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, uint64(7), cfg.Statistics.Seed)
	assert.Equal(t, 200, cfg.Statistics.BootstrapReps)
	assert.Equal(t, 300, cfg.Plot.DPI)
	assert.Equal(t, "percentile", cfg.BootstrapMethod)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10000, cfg.Statistics.MonteCarloPerms)
	assert.Equal(t, 0.95, cfg.Statistics.ConfidenceLevel)
	assert.Equal(t, 3.0, cfg.Plot.HeightInches)
	require.NoError(t, cfg.Validate())
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "surveyeval.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"confidence", func(c *Config) { c.Statistics.ConfidenceLevel = 1 }},
		{"perms", func(c *Config) { c.Statistics.MonteCarloPerms = 0 }},
		{"adjust", func(c *Config) { c.Statistics.MultipleComparisons = "fdr" }},
		{"bounds", func(c *Config) { c.Equivalence.Low, c.Equivalence.High = 0.3, -0.3 }},
		{"bootstrap", func(c *Config) { c.BootstrapMethod = "studentized" }},
		{"scoring", func(c *Config) { c.Scoring = "weird" }},
		{"dpi", func(c *Config) { c.Plot.DPI = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Check states.
const (
	CheckPassed  = "passed"
	CheckFailed  = "failed"
	CheckMissing = "missing"
)

// ValidationCheck is the outcome of re-hashing one recorded file.
type ValidationCheck struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Status   string `json:"status"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ValidationResult summarises a manifest verification.
type ValidationResult struct {
	RunID       string            `json:"runId"`
	ValidatedAt time.Time         `json:"validatedAt"`
	Checks      []ValidationCheck `json:"checks"`
	Passed      bool              `json:"passed"`
	Score       float64           `json:"score"`
}

// ReproducibilityValidator re-computes checksums recorded in a run manifest.
type ReproducibilityValidator struct {
	logger *zap.Logger
	// SkipInputs limits verification to the outputs.
	SkipInputs bool
}

// NewReproducibilityValidator creates a new reproducibility validator
func NewReproducibilityValidator(logger *zap.Logger) *ReproducibilityValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReproducibilityValidator{logger: logger}
}

// Verify checks every file in the manifest at manifestPath. Output paths are
// resolved relative to the manifest's directory.
func (rv *ReproducibilityValidator) Verify(ctx context.Context, manifestPath string) (*ValidationResult, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	rv.logger.Info("Validating run", zap.String("runId", m.RunID), zap.String("manifest", manifestPath))

	result := &ValidationResult{RunID: m.RunID, ValidatedAt: time.Now().UTC()}
	if !rv.SkipInputs {
		for _, in := range m.Inputs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			result.Checks = append(result.Checks, rv.check("input", in, in.Path))
		}
	}
	base := filepath.Dir(manifestPath)
	for _, out := range m.Outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Checks = append(result.Checks, rv.check("output", out, filepath.Join(base, out.Path)))
	}

	result.Score = calculateValidationScore(result.Checks)
	result.Passed = len(result.Checks) > 0 && result.Score == 1

	rv.logger.Info("Run validation completed",
		zap.String("runId", m.RunID),
		zap.Int("checks", len(result.Checks)),
		zap.Float64("score", result.Score),
		zap.Bool("passed", result.Passed))
	return result, nil
}

func (rv *ReproducibilityValidator) check(kind string, rec FileRecord, path string) ValidationCheck {
	c := ValidationCheck{Kind: kind, Name: rec.Name, Path: path, Expected: rec.Checksum}
	sum, _, err := ComputeChecksum(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.Status = CheckMissing
		c.Message = "file not found"
	case err != nil:
		c.Status = CheckFailed
		c.Message = fmt.Sprintf("failed to compute checksum: %v", err)
	case sum != rec.Checksum:
		c.Status = CheckFailed
		c.Actual = sum
		c.Message = "checksum mismatch"
	default:
		c.Status = CheckPassed
		c.Actual = sum
	}
	if c.Status != CheckPassed {
		rv.logger.Warn("Checksum validation failed",
			zap.String("kind", kind),
			zap.String("name", rec.Name),
			zap.String("status", c.Status))
	}
	return c
}

// calculateValidationScore returns the share of checks that passed.
func calculateValidationScore(checks []ValidationCheck) float64 {
	if len(checks) == 0 {
		return 0
	}
	passed := 0
	for _, c := range checks {
		if c.Status == CheckPassed {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

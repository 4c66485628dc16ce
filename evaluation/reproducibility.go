package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ManifestName is the file a run manifest is written to inside the output directory.
const ManifestName = "surveyeval-manifest.json"

// FileRecord pins one input or output file by checksum.
type FileRecord struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"sha256"`
}

// EnvironmentSnapshot captures where a run happened.
type EnvironmentSnapshot struct {
	GoVersion    string `json:"goVersion"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	Hostname     string `json:"hostname"`
	NumCPU       int    `json:"numCpu"`
}

// RunManifest records everything needed to reproduce and check a run.
type RunManifest struct {
	RunID       string              `json:"runId"`
	StartedAt   time.Time           `json:"startedAt"`
	FinishedAt  time.Time           `json:"finishedAt"`
	Seed        uint64              `json:"seed"`
	Parameters  map[string]any      `json:"parameters,omitempty"`
	Environment EnvironmentSnapshot `json:"environment"`
	Inputs      []FileRecord        `json:"inputs"`
	Outputs     []FileRecord        `json:"outputs"`
}

// ReproducibilityManager writes outputs through an artifact store and keeps
// the run manifest up to date. Safe for concurrent use.
type ReproducibilityManager struct {
	logger *zap.Logger
	store  ArtifactStore

	mu       sync.Mutex
	manifest RunManifest
}

// NewReproducibilityManager creates a new reproducibility manager
func NewReproducibilityManager(logger *zap.Logger, store ArtifactStore, seed uint64, params map[string]any) *ReproducibilityManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	rm := &ReproducibilityManager{
		logger: logger,
		store:  store,
		manifest: RunManifest{
			RunID:       uuid.NewString(),
			StartedAt:   time.Now().UTC(),
			Seed:        seed,
			Parameters:  params,
			Environment: CaptureEnvironment(),
		},
	}
	logger.Info("Starting run", zap.String("runId", rm.manifest.RunID), zap.Uint64("seed", seed))
	return rm
}

// RunID returns the identifier of this run.
func (rm *ReproducibilityManager) RunID() string { return rm.manifest.RunID }

// CaptureEnvironment captures the current environment state
func CaptureEnvironment() EnvironmentSnapshot {
	hostname, _ := os.Hostname()
	return EnvironmentSnapshot{
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		Hostname:     hostname,
		NumCPU:       runtime.NumCPU(),
	}
}

// RecordInput hashes an input file and adds it to the manifest. Recording the
// same path twice is a no-op.
func (rm *ReproducibilityManager) RecordInput(path string) error {
	sum, size, err := ComputeChecksum(path)
	if err != nil {
		return fmt.Errorf("failed to checksum input %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, in := range rm.manifest.Inputs {
		if in.Path == abs {
			return nil
		}
	}
	rm.manifest.Inputs = append(rm.manifest.Inputs, FileRecord{
		Name: filepath.Base(path), Path: abs, Size: size, Checksum: sum,
	})
	rm.logger.Debug("Recorded input", zap.String("path", abs), zap.String("sha256", sum))
	return nil
}

// Write stores an output artifact and records it in the manifest.
func (rm *ReproducibilityManager) Write(ctx context.Context, name string, fn func(w io.Writer) error) (*Artifact, error) {
	artifact, err := rm.store.Write(ctx, name, fn)
	if err != nil {
		return nil, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rec := FileRecord{Name: name, Path: name, Size: artifact.Size, Checksum: artifact.Checksum}
	for i, out := range rm.manifest.Outputs {
		if out.Name == name {
			rm.manifest.Outputs[i] = rec
			return artifact, nil
		}
	}
	rm.manifest.Outputs = append(rm.manifest.Outputs, rec)
	return artifact, nil
}

// Path returns where the named output lives.
func (rm *ReproducibilityManager) Path(name string) string { return rm.store.Path(name) }

// Manifest returns a copy of the current manifest.
func (rm *ReproducibilityManager) Manifest() RunManifest {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	m := rm.manifest
	m.Inputs = append([]FileRecord(nil), rm.manifest.Inputs...)
	m.Outputs = append([]FileRecord(nil), rm.manifest.Outputs...)
	sort.Slice(m.Outputs, func(i, j int) bool { return m.Outputs[i].Name < m.Outputs[j].Name })
	return m
}

// Finalize stamps the finish time and writes the manifest next to the outputs.
func (rm *ReproducibilityManager) Finalize(ctx context.Context) (*Artifact, error) {
	rm.mu.Lock()
	rm.manifest.FinishedAt = time.Now().UTC()
	rm.mu.Unlock()

	m := rm.Manifest()
	artifact, err := rm.store.Write(ctx, ManifestName, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	rm.logger.Info("Run manifest written",
		zap.String("runId", m.RunID),
		zap.Int("inputs", len(m.Inputs)),
		zap.Int("outputs", len(m.Outputs)),
		zap.String("path", artifact.Path))
	return artifact, nil
}

// LoadManifest reads a manifest written by Finalize.
func LoadManifest(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

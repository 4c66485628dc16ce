package evaluation

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Artifact describes one file produced by a run.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"createdAt"`
}

// ArtifactStore persists named output files.
type ArtifactStore interface {
	// Write streams the content produced by fn into the named artifact.
	Write(ctx context.Context, name string, fn func(w io.Writer) error) (*Artifact, error)
	Path(name string) string
	List(ctx context.Context) ([]*Artifact, error)
}

// FileSystemArtifactStore implements ArtifactStore using filesystem
type FileSystemArtifactStore struct {
	basePath string
	logger   *zap.Logger
	config   *FileSystemStoreConfig
}

// FileSystemStoreConfig represents filesystem store configuration
type FileSystemStoreConfig struct {
	BasePath        string      `json:"basePath"`
	CreateDirs      bool        `json:"createDirs"`
	FilePermissions os.FileMode `json:"filePermissions"`
	DirPermissions  os.FileMode `json:"dirPermissions"`
	SyncWrites      bool        `json:"syncWrites"`
	BufferSize      int         `json:"bufferSize"`
}

// NewFileSystemArtifactStore creates a new filesystem artifact store
func NewFileSystemArtifactStore(logger *zap.Logger, basePath string) *FileSystemArtifactStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	config := &FileSystemStoreConfig{
		BasePath:        basePath,
		CreateDirs:      true,
		FilePermissions: 0644,
		DirPermissions:  0755,
		SyncWrites:      true,
		BufferSize:      64 * 1024,
	}

	return &FileSystemArtifactStore{
		basePath: basePath,
		logger:   logger,
		config:   config,
	}
}

// Path returns the location of the named artifact.
func (fs *FileSystemArtifactStore) Path(name string) string {
	return filepath.Join(fs.basePath, name)
}

// Write stores an artifact through a temporary file that is renamed into
// place once fn succeeds, so readers never see a partial file.
func (fs *FileSystemArtifactStore) Write(ctx context.Context, name string, fn func(w io.Writer) error) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.logger.Debug("Storing artifact", zap.String("name", name))

	target := fs.Path(name)
	dir := filepath.Dir(target)
	if fs.config.CreateDirs {
		if err := os.MkdirAll(dir, fs.config.DirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	hash := sha256.New()
	counter := &countingWriter{}
	buf := bufio.NewWriterSize(io.MultiWriter(tmp, hash, counter), fs.config.BufferSize)
	if err := fn(buf); err != nil {
		return nil, fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if err := buf.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush artifact %s: %w", name, err)
	}
	if fs.config.SyncWrites {
		if err := tmp.Sync(); err != nil {
			return nil, fmt.Errorf("failed to sync artifact %s: %w", name, err)
		}
	}
	if err := tmp.Chmod(fs.config.FilePermissions); err != nil {
		return nil, fmt.Errorf("failed to set artifact permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close artifact %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return nil, fmt.Errorf("failed to move artifact into place: %w", err)
	}
	committed = true

	artifact := &Artifact{
		Name:      name,
		Path:      target,
		Size:      counter.n,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		CreatedAt: time.Now().UTC(),
	}
	fs.logger.Info("Artifact stored",
		zap.String("name", name),
		zap.Int64("size", artifact.Size),
		zap.String("sha256", artifact.Checksum))
	return artifact, nil
}

// List returns every regular file directly under the store root.
func (fs *FileSystemArtifactStore) List(ctx context.Context) ([]*Artifact, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	var out []*Artifact
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || e.Name()[0] == '.' {
			continue
		}
		path := fs.Path(e.Name())
		sum, size, err := ComputeChecksum(path)
		if err != nil {
			return nil, err
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat artifact %s: %w", e.Name(), err)
		}
		out = append(out, &Artifact{Name: e.Name(), Path: path, Size: size, Checksum: sum, CreatedAt: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ComputeChecksum returns the hex SHA-256 digest and size of the file at path.
func ComputeChecksum(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hash := sha256.New()
	n, err := io.Copy(hash, file)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), n, nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

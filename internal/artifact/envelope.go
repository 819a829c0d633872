// Package artifact persists fitted estimators in a versioned envelope and
// loads them for serving.
package artifact

import (
	"bytes"
	"context"
	"encoding"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Kind names what an artifact holds.
type Kind string

// Artifact kinds.
const (
	KindTransformer Kind = "transformer"
	KindModel       Kind = "model"
)

const (
	magic = "churn-artifact"
	// FormatVersion is bumped whenever the envelope layout changes.
	FormatVersion = 1
)

// Sentinel errors.
var (
	ErrArtifactMissing = errors.New("artifact missing")
	ErrArtifactCorrupt = errors.New("artifact corrupt")
	ErrArtifactKind    = errors.New("artifact kind mismatch")
)

// Info describes a stored artifact.
type Info struct {
	Kind      Kind      `json:"kind"`
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int       `json:"version"`
	Path      string    `json:"path"`
}

type envelope struct {
	Magic     string
	Version   int
	Kind      Kind
	ID        uuid.UUID
	CreatedAt time.Time
	Payload   []byte
}

// Save writes obj to path inside an envelope. Parent directories are
// created and the file is replaced atomically.
func Save(ctx context.Context, path string, kind Kind, obj encoding.BinaryMarshaler) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	payload, err := obj.MarshalBinary()
	if err != nil {
		return Info{}, fmt.Errorf("marshal %s: %w", kind, err)
	}

	env := envelope{
		Magic:     magic,
		Version:   FormatVersion,
		Kind:      kind,
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return Info{}, fmt.Errorf("encode %s envelope: %w", kind, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Info{}, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return Info{}, fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Info{}, fmt.Errorf("rename %s: %w", path, err)
	}
	return env.info(path), nil
}

// Load reads the envelope at path, checks it holds kind and decodes the
// payload into obj.
func Load(ctx context.Context, path string, kind Kind, obj encoding.BinaryUnmarshaler) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if errors.Is(err, os.ErrNotExist) {
		return Info{}, fmt.Errorf("%w: %s at %s", ErrArtifactMissing, kind, path)
	}
	if err != nil {
		return Info{}, fmt.Errorf("read %s at %s: %w", kind, path, err)
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return Info{}, fmt.Errorf("%w: %s at %s: %w", ErrArtifactCorrupt, kind, path, err)
	}
	if env.Magic != magic {
		return Info{}, fmt.Errorf("%w: %s at %s: not an artifact file", ErrArtifactCorrupt, kind, path)
	}
	if env.Version != FormatVersion {
		return Info{}, fmt.Errorf("%w: %s at %s: format version %d, want %d", ErrArtifactCorrupt, kind, path, env.Version, FormatVersion)
	}
	if env.Kind != kind {
		return Info{}, fmt.Errorf("%w: %s at %s holds %s", ErrArtifactKind, kind, path, env.Kind)
	}
	if err := obj.UnmarshalBinary(env.Payload); err != nil {
		return Info{}, fmt.Errorf("%w: %s at %s: %w", ErrArtifactCorrupt, kind, path, err)
	}
	return env.info(path), nil
}

func (e envelope) info(path string) Info {
	return Info{Kind: e.Kind, ID: e.ID, CreatedAt: e.CreatedAt, Version: e.Version, Path: path}
}

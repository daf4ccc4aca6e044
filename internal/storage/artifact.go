package storage

import (
	"bufio"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/manohar-125/ThalAI-App/internal/features"
	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/pipeline"
)

// ArtifactFormatVersion is bumped whenever the encoded layout changes.
const ArtifactFormatVersion = 1

// Artifact errors.
var (
	ErrArtifactNotFound     = errors.New("artifact not found")
	ErrArtifactCorrupted    = errors.New("artifact integrity check failed")
	ErrArtifactIncompatible = errors.New("artifact format not supported")
)

// Artifact is the persisted training output: the fitted pipeline and the
// schema it was trained against.
type Artifact struct {
	CreatedAt     time.Time
	Pipeline      *pipeline.Pipeline
	RunID         string
	Fingerprint   string
	Schema        model.FeatureSchema
	FormatVersion int
}

// NewArtifact wraps a fitted pipeline.
func NewArtifact(runID string, p *pipeline.Pipeline) *Artifact {
	schema := model.FeatureSchema{}
	if p != nil {
		schema = p.Schema.Clone()
	}
	return &Artifact{
		FormatVersion: ArtifactFormatVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Schema:        schema,
		Fingerprint:   schema.Fingerprint(),
		Pipeline:      p,
	}
}

// ArtifactMetadata is written next to the artifact as JSON so the schema can
// be inspected without decoding the model.
type ArtifactMetadata struct {
	CreatedAt     time.Time `json:"created_at"`
	RunID         string    `json:"run_id"`
	Fingerprint   string    `json:"fingerprint"`
	SHA256        string    `json:"sha256"`
	DateSource    string    `json:"date_source,omitempty"`
	Numeric       []string  `json:"numeric_features"`
	Categorical   []string  `json:"categorical_features"`
	Size          int64     `json:"size"`
	FormatVersion int       `json:"format_version"`
}

// MetadataPath returns the sidecar location for an artifact path.
func MetadataPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".meta.json"
}

// SaveArtifact writes a to path atomically and returns its metadata. A
// reader never observes a partially written file.
func SaveArtifact(path string, a *Artifact) (*ArtifactMetadata, error) {
	if err := validateString(path, "path"); err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: artifact", ErrNilParameter)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(tmp, hash)}
	buf := bufio.NewWriter(counter)
	if err := gob.NewEncoder(buf).Encode(a); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := buf.Flush(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("failed to move artifact into place: %w", err)
	}

	meta := &ArtifactMetadata{
		CreatedAt:     a.CreatedAt,
		RunID:         a.RunID,
		Fingerprint:   a.Fingerprint,
		SHA256:        hex.EncodeToString(hash.Sum(nil)),
		DateSource:    a.Schema.DateSource,
		Numeric:       a.Schema.Numeric,
		Categorical:   a.Schema.Categorical,
		Size:          counter.n,
		FormatVersion: a.FormatVersion,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(MetadataPath(path), data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	return meta, nil
}

// LoadArtifact reads and verifies the artifact at path. The format version,
// the recorded fingerprint and the schema shape must all check out.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path) //nolint:gosec // artifact path comes from configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	var a Artifact
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCorrupted, err)
	}
	if err := verifyArtifact(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func verifyArtifact(a *Artifact) error {
	if a.FormatVersion != ArtifactFormatVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrArtifactIncompatible, a.FormatVersion, ArtifactFormatVersion)
	}
	if got := a.Schema.Fingerprint(); got != a.Fingerprint {
		return fmt.Errorf("%w: schema fingerprint mismatch", ErrArtifactCorrupted)
	}
	if err := features.ValidateSchema(a.Schema); err != nil {
		return fmt.Errorf("%w: %w", ErrArtifactIncompatible, err)
	}
	if a.Schema.IsEmpty() {
		// Loadable, but every prediction against it is refused.
		return nil
	}
	if a.Pipeline == nil {
		return fmt.Errorf("%w: no fitted pipeline", ErrArtifactCorrupted)
	}
	if !a.Pipeline.Schema.Equal(a.Schema) {
		return fmt.Errorf("%w: pipeline schema differs from artifact schema", ErrArtifactCorrupted)
	}
	return nil
}

// ReadArtifactMetadata reads the JSON sidecar for an artifact.
func ReadArtifactMetadata(artifactPath string) (*ArtifactMetadata, error) {
	data, err := os.ReadFile(MetadataPath(artifactPath)) //nolint:gosec // derived from configured path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, MetadataPath(artifactPath))
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta ArtifactMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCorrupted, err)
	}
	return &meta, nil
}

// FileSHA256 hashes the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // caller-controlled path
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

package aggregates

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openmedicaid/claimlens/internal/models"
)

//go:embed seed/snapshot.json
var seedSnapshot []byte

// FileStore reads a snapshot from a JSON or YAML file on every call, so a
// replaced file is picked up by the next refresh. An empty path serves the
// embedded seed snapshot.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Snapshot decodes and validates the snapshot.
func (s *FileStore) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return Decode(seedSnapshot, ".json")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Decode(data, filepath.Ext(s.path))
}

// Seed returns the embedded sample snapshot.
func Seed() (*models.Snapshot, error) {
	return Decode(seedSnapshot, ".json")
}

// Decode parses a snapshot in the format named by ext (".json", ".yaml" or
// ".yml") and validates it. Unknown fields are rejected.
func Decode(data []byte, ext string) (*models.Snapshot, error) {
	var snap models.Snapshot
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to parse YAML snapshot: %w", err)
		}
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to parse JSON snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", ext)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

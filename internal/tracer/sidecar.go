package tracer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when Sidecar format changes
const sidecarSchemaVersion uint16 = 1

// Sidecar maps function indices back to names after instrumentation,
// so a raw log dump can be replayed without the original module.
type Sidecar struct {
	Schema uint16
	Module string // path of the module this was generated from
	Logger string // logger export name the pass wired calls to
	Names  map[uint32]string
}

// NewSidecar builds a sidecar for the given module path.
func NewSidecar(modulePath, logger string, names map[uint32]string) *Sidecar {
	return &Sidecar{
		Schema: sidecarSchemaVersion,
		Module: modulePath,
		Logger: logger,
		Names:  names,
	}
}

// Name resolves a function index, returning "" when unknown.
func (s *Sidecar) Name(id uint32) string {
	if s == nil {
		return ""
	}
	return s.Names[id]
}

// WriteSidecar serializes the sidecar to path. The write is atomic:
// a temp file in the same directory is renamed over the target.
func WriteSidecar(path string, s *Sidecar) error {
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return fmt.Errorf("create sidecar: %w", err)
	}
	defer os.Remove(f.Name())

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(s); err != nil {
		f.Close()
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close sidecar: %w", err)
	}
	return os.Rename(f.Name(), path)
}

// ReadSidecar deserializes a sidecar from path.
func ReadSidecar(path string) (*Sidecar, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("sidecar %s does not exist", path)
		}
		return nil, fmt.Errorf("open sidecar: %w", err)
	}
	defer f.Close()

	var s Sidecar
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: decode sidecar: %w", path, err)
	}
	if s.Schema != sidecarSchemaVersion {
		return nil, fmt.Errorf("%s: sidecar schema %d, want %d", path, s.Schema, sidecarSchemaVersion)
	}
	return &s, nil
}

// Package filestore persists raw uploaded car archives under a content directory
// with collision-safe file names.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrEmpty is returned when there is nothing to store.
var ErrEmpty = errors.New("empty archive")

// Error reports a failed store operation together with the original file name.
type Error struct {
	Err  error
	Name string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Result describes a stored archive.
type Result struct {
	// Path is the absolute-or-relative location on disk, rooted at the store directory.
	Path string

	// Name is the generated unique file name (base of Path).
	Name string

	// OriginalName is the client supplied file name, unsanitized.
	OriginalName string

	// Size of the stored content in bytes.
	Size int64
}

// Store writes archives into a single directory.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created lazily on first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a sanitized, uniquely suffixed version of originalName.
// Repeated calls with the same name never overwrite each other.
func (s *Store) Save(data []byte, originalName string) (*Result, error) {
	if len(data) == 0 {
		return nil, &Error{Name: originalName, Err: ErrEmpty}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, &Error{Name: originalName, Err: fmt.Errorf("failed to create store directory: %w", err)}
	}

	name := UniqueName(originalName)
	path := filepath.Join(s.dir, name)

	if err := writeAtomic(path, data); err != nil {
		return nil, &Error{Name: originalName, Err: err}
	}

	log.Debug().
		Str("path", path).
		Str("original", originalName).
		Int("size", len(data)).
		Msg("Archive stored")

	return &Result{
		Path:         path,
		Name:         name,
		OriginalName: originalName,
		Size:         int64(len(data)),
	}, nil
}

// Sanitize replaces every character outside [A-Za-z0-9._-] with an underscore.
// Only the base name is kept, so client supplied directories are dropped.
func Sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "archive"
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	return b.String()
}

// UniqueName returns "<sanitized stem>_<token><ext>" with an 8 hex character random token.
func UniqueName(originalName string) string {
	safe := Sanitize(originalName)
	ext := filepath.Ext(safe)
	stem := strings.TrimSuffix(safe, ext)
	if stem == "" {
		stem = "archive"
	}

	return fmt.Sprintf("%s_%s%s", stem, Token(), ext)
}

// Token returns a short random identifier.
func Token() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// writeAtomic writes to a temporary file in the target directory and renames it into place,
// so readers never observe a partially written archive.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}

	return nil
}

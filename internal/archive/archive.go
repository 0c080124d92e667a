// Package archive unpacks uploaded car ZIP archives into isolated extraction
// directories and locates files inside them by extension.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ModelExt is the extension of Assetto Corsa 3D model files.
const ModelExt = ".kn5"

// ErrUnsafePath is returned for archive entries that would land outside the extraction directory.
var ErrUnsafePath = errors.New("unsafe archive entry path")

// Error reports a failed extraction of a specific archive.
type Error struct {
	Err     error
	Archive string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Result describes an extracted archive.
type Result struct {
	// Dir is the extraction directory, unique per archive.
	Dir string

	// Model is the canonical model file: the first of Models, or empty when there is none.
	Model string

	// Models holds every file ending in ModelExt, in lexical walk order.
	Models []string
}

// Extractor unpacks archives below a root directory.
type Extractor struct {
	root string
}

// New returns an Extractor placing extraction directories under root.
func New(root string) *Extractor {
	return &Extractor{root: root}
}

// DirFor returns the extraction directory used for archivePath: the archive base name without extension.
// Stored archive names carry a unique token, so the directory is never shared between uploads.
func (x *Extractor) DirFor(archivePath string) string {
	base := filepath.Base(archivePath)
	return filepath.Join(x.root, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Extract unpacks archivePath, overwriting files left by a previous extraction of the same archive,
// and collects its model files. Zero model files is not an error.
//
// Cancelling ctx stops extraction between entries. The partially filled directory belongs
// to this archive only and is overwritten by the next attempt.
func (x *Extractor) Extract(ctx context.Context, archivePath string) (*Result, error) {
	dir := x.DirFor(archivePath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Archive: archivePath, Err: fmt.Errorf("failed to create extraction directory: %w", err)}
	}

	if err := unzip(ctx, archivePath, dir); err != nil {
		return nil, &Error{Archive: archivePath, Err: err}
	}

	models := FindFiles(dir, ModelExt)
	res := &Result{Dir: dir, Models: models}
	if len(models) > 0 {
		res.Model = models[0]
	}

	log.Debug().
		Str("archive", archivePath).
		Str("dir", dir).
		Int("models", len(models)).
		Msg("Archive extracted")

	return res, nil
}

func unzip(ctx context.Context, archivePath, dir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeTarget(dir, f.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}

	return out.Close()
}

// safeTarget joins an archive entry name onto root, rejecting absolute and parent-escaping names.
func safeTarget(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(name)))
	if clean == "." {
		return root, nil
	}
	if clean == "" || filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", ErrUnsafePath
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}

	return filepath.Join(root, clean), nil
}

// FindFiles walks root recursively and returns regular files whose name ends with one of exts,
// compared case-insensitively. Walk order is lexical, so results are stable across platforms.
// Unreadable subtrees are skipped.
func FindFiles(root string, exts ...string) []string {
	var found []string

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		for _, want := range exts {
			if ext == strings.ToLower(want) {
				found = append(found, path)
				break
			}
		}

		return nil
	})

	return found
}

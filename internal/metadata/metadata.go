// Package metadata recovers car metadata and a preview image from an extracted car archive.
//
// Recovery is best effort: missing or malformed files degrade to an empty mapping and
// no image, they never fail the caller.
package metadata

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/acrc-community/acrc/internal/archive"
	"github.com/rs/zerolog/log"
)

// Candidates lists metadata files relative to the extraction directory, in merge order.
// Keys from later files overwrite keys from earlier ones.
var Candidates = []string{
	"ui_car.json",
	filepath.Join("ui", "ui_car.json"),
}

// ImageExts are the preview image extensions searched for.
var ImageExts = []string{".png", ".jpg", ".jpeg"}

// previewHints mark an image as a preview when found in its path relative to the extraction directory.
var previewHints = []string{"preview", "car"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Result is the recovered metadata of one extraction directory.
type Result struct {
	// Fields is the merged top level content of every readable candidate file. Never nil.
	Fields map[string]any

	// Image is the chosen preview image path, empty when the archive has no image.
	Image string

	// Sources lists the candidate files that contributed to Fields.
	Sources []string
}

// String returns Fields[key] when it is a non-empty string.
func (r Result) String(key string) string {
	v, ok := r.Fields[key].(string)
	if !ok {
		return ""
	}

	return strings.TrimSpace(v)
}

// Recover reads metadata candidates and picks a preview image below dir.
// Candidates are looked up in dir and then in its wrapper directory, if any.
func Recover(dir string) Result {
	res := Result{Fields: make(map[string]any)}

	for _, root := range searchRoots(dir) {
		for _, name := range Candidates {
			path := filepath.Join(root, name)
			fields, ok := readJSON(path)
			if !ok {
				continue
			}
			for k, v := range fields {
				res.Fields[k] = v
			}
			res.Sources = append(res.Sources, path)
		}
	}

	res.Image = PickImage(dir)

	return res
}

// searchRoots returns dir and, when dir holds nothing but a single directory,
// that directory too. Car archives are commonly packed inside a folder named after the car.
func searchRoots(dir string) []string {
	roots := []string{dir}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return roots
	}

	return append(roots, filepath.Join(dir, entries[0].Name()))
}

// readJSON decodes a JSON object file. Missing files are silently skipped, unreadable
// or malformed files are logged and skipped.
func readJSON(path string) (map[string]any, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read metadata file")
		}
		return nil, false
	}

	// Kunos tools write ui_car.json with a BOM
	data = bytes.TrimPrefix(data, utf8BOM)

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Skipping malformed metadata file")
		return nil, false
	}
	if fields == nil {
		return nil, false
	}

	return fields, true
}

// PickImage returns the first image whose relative path mentions a preview hint,
// otherwise the first image of any kind, otherwise an empty string.
func PickImage(dir string) string {
	images := archive.FindFiles(dir, ImageExts...)
	if len(images) == 0 {
		return ""
	}

	for _, img := range images {
		rel, err := filepath.Rel(dir, img)
		if err != nil {
			rel = img
		}
		rel = strings.ToLower(rel)

		for _, hint := range previewHints {
			if strings.Contains(rel, hint) {
				return img
			}
		}
	}

	return images[0]
}

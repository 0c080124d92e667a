// Package ingest turns an uploaded car archive into a catalog draft by sequencing
// store, extract and metadata recovery.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/acrc-community/acrc/internal/archive"
	"github.com/acrc-community/acrc/internal/category"
	"github.com/acrc-community/acrc/internal/filestore"
	"github.com/acrc-community/acrc/internal/metadata"
	"github.com/acrc-community/acrc/internal/metrics"
	"github.com/acrc-community/acrc/internal/models"
	"github.com/rs/zerolog/log"
)

// Stage names a step of the ingestion pipeline.
type Stage string

// Pipeline stages, in order.
const (
	StageUploaded          Stage = "uploaded"
	StageStored            Stage = "stored"
	StageExtracted         Stage = "extracted"
	StageMetadataRecovered Stage = "metadata_recovered"
	StageCategoryAssigned  Stage = "category_assigned"
	StageReady             Stage = "ready"
)

// Sentinel errors for the two fatal stages.
var (
	ErrStore   = errors.New("failed to save file")
	ErrExtract = errors.New("failed to extract ZIP file")
)

// Error is returned when a fatal stage fails.
type Error struct {
	Err   error
	Stage Stage

	// ArchivePath is set when the archive was stored before the failure. It is kept on disk.
	ArchivePath string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Stage, e.Err)
}

// Unwrap returns the stage sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	switch e.Stage {
	case StageStored:
		return []error{ErrStore, e.Err}
	case StageExtracted:
		return []error{ErrExtract, e.Err}
	default:
		return []error{e.Err}
	}
}

// Pipeline wires the ingestion components together.
type Pipeline struct {
	store     *filestore.Store
	extractor *archive.Extractor

	// publicURL prefixes generated download URLs, may be empty.
	publicURL string
}

// New creates a Pipeline writing archives to uploadDir and extracting them below extractDir.
func New(uploadDir, extractDir, publicURL string) *Pipeline {
	return &Pipeline{
		store:     filestore.New(uploadDir),
		extractor: archive.New(extractDir),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Ingest stores, extracts and inspects one uploaded archive and returns a draft ready for persistence.
// It never writes to the catalog.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, originalName string) (*models.CarDraft, error) {
	start := time.Now()
	logCtx := log.With().Str("file", originalName).Logger()
	logCtx.Debug().Str("stage", string(StageUploaded)).Int("size", len(data)).Msg("Car archive received")

	stored, err := p.store.Save(data, originalName)
	if err != nil {
		metrics.IngestCount.WithLabelValues(string(StageStored)).Inc()
		logCtx.Error().Err(err).Str("stage", string(StageStored)).Msg("Failed to store car archive")
		return nil, &Error{Stage: StageStored, Err: err}
	}

	extracted, err := p.extractor.Extract(ctx, stored.Path)
	if err != nil {
		metrics.IngestCount.WithLabelValues(string(StageExtracted)).Inc()
		logCtx.Error().Err(err).Str("stage", string(StageExtracted)).Str("path", stored.Path).Msg("Failed to extract car archive")
		return nil, &Error{Stage: StageExtracted, Err: err, ArchivePath: stored.Path}
	}

	meta := metadata.Recover(extracted.Dir)
	logCtx.Debug().
		Str("stage", string(StageMetadataRecovered)).
		Strs("sources", meta.Sources).
		Str("image", meta.Image).
		Msg("Car metadata recovered")

	carCategory := category.Cars.Resolve(meta.String("category"), originalName)
	logCtx.Debug().Str("stage", string(StageCategoryAssigned)).Str("category", carCategory).Msg("Car category assigned")

	token := filestore.Token()
	draft := &models.CarDraft{
		Name:          Name(meta, originalName),
		Category:      carCategory,
		ImageURL:      p.publicPath(meta.Image),
		DownloadURL:   p.publicURL + "/api/cars/" + token + "/download",
		DownloadToken: token,
		Rating:        models.DefaultCarRating,
		Specs:         meta.Fields,
		FilePath:      stored.Path,
		ExtractedPath: extracted.Dir,
		Model3DPath:   extracted.Model,
	}

	metrics.IngestCount.WithLabelValues(string(StageReady)).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	logCtx.Info().
		Str("stage", string(StageReady)).
		Str("name", draft.Name).
		Str("category", draft.Category).
		Str("path", draft.FilePath).
		Int("models", len(extracted.Models)).
		Bool("image", draft.ImageURL != "").
		Msg("Car archive ingested")

	return draft, nil
}

// Name returns the metadata name when present, else the original file name without extension.
func Name(meta metadata.Result, originalName string) string {
	if name := meta.String("name"); name != "" {
		return name
	}

	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// publicPath maps a file below the upload directory to its /uploads/ URL.
func (p *Pipeline) publicPath(path string) string {
	if path == "" {
		return ""
	}

	rel, err := filepath.Rel(p.store.Dir(), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// extraction root lives outside the upload dir and is not served
		return ""
	}

	return p.publicURL + "/uploads/" + filepath.ToSlash(rel)
}

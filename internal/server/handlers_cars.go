package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/acrc-community/acrc/internal/ingest"
	"github.com/acrc-community/acrc/internal/models"
	"github.com/acrc-community/acrc/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// uploadField is the multipart field carrying the car archive.
const uploadField = "carFile"

// multipartOverhead is added to the upload limit to account for form boundaries and headers.
const multipartOverhead = 64 << 10

// handleListCars returns cars, optionally filtered by ?category=.
func (s *Server) handleListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := s.storage.ListCars(categoryFilter(r))
	if err != nil {
		dbError(w, err, "Failed to list cars")
		return
	}

	writeJSON(w, http.StatusOK, cars)
}

// handleGetCar returns a single car.
func (s *Server) handleGetCar(w http.ResponseWriter, r *http.Request) {
	car, ok := s.loadCar(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, car)
}

// handleDownloadCar streams the stored archive of a car addressed by id or download token.
// Entries without an archive on record get an acknowledgement instead.
func (s *Server) handleDownloadCar(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")

	var (
		car *models.Car
		err error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		car, err = s.storage.GetCar(id)
	}
	// tokens may be all digits
	if car == nil && err == nil {
		car, err = s.storage.GetCarByToken(ref)
	}
	if err != nil {
		dbError(w, err, "Failed to fetch car")
		return
	}
	if car == nil {
		writeError(w, http.StatusNotFound, "Car not found")
		return
	}

	if car.FilePath == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"message":     "Download started for " + car.Name,
			"downloadUrl": car.DownloadURL,
		})
		return
	}

	f, err := os.Open(car.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Int64("id", car.ID).Str("path", car.FilePath).Msg("Car archive missing on disk")
			writeError(w, http.StatusNotFound, "Car file not found")
			return
		}
		log.Error().Err(err).Str("path", car.FilePath).Msg("Failed to open car archive")
		writeError(w, http.StatusInternalServerError, "Error processing car download")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusInternalServerError, "Error processing car download")
		return
	}

	name := filepath.Base(car.FilePath)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// handleModel3D describes the primary model file of a car.
func (s *Server) handleModel3D(w http.ResponseWriter, r *http.Request) {
	car, ok := s.loadCar(w, r)
	if !ok {
		return
	}

	if car.Model3DPath == "" {
		writeError(w, http.StatusNotFound, "No 3D model available for this car")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"model3dPath": car.Model3DPath,
		"fileName":    filepath.Base(car.Model3DPath),
	})
}

// handleUploadCar ingests a multipart car archive and stores the resulting catalog entry.
func (s *Server) handleUploadCar(w http.ResponseWriter, r *http.Request) {
	limit := humanize.Bytes(uint64(s.uploadLimit))
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit+multipartOverhead)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		switch {
		case isMaxBytes(err):
			writeError(w, http.StatusRequestEntityTooLarge, "File too large (max "+limit+")")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "No file uploaded")
		default:
			writeErrorDetail(w, http.StatusBadRequest, "Invalid upload", err)
		}
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.uploadLimit {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large (max "+limit+")")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.uploadLimit+1))
	if err != nil {
		writeErrorDetail(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	if int64(len(data)) > s.uploadLimit {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large (max "+limit+")")
		return
	}

	if !isZip(data, header.Filename) {
		writeError(w, http.StatusBadRequest, "Only ZIP files are allowed")
		return
	}

	draft, err := s.pipeline.Ingest(r.Context(), data, header.Filename)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrStore):
			writeErrorDetail(w, http.StatusInternalServerError, ingest.ErrStore.Error(), err)
		case errors.Is(err, ingest.ErrExtract):
			writeErrorDetail(w, http.StatusInternalServerError, ingest.ErrExtract.Error(), err)
		default:
			writeErrorDetail(w, http.StatusInternalServerError, "Error processing car upload", err)
		}
		return
	}

	car, err := s.storage.CreateCar(*draft)
	if err != nil {
		dbError(w, err, "Failed to save car")
		return
	}

	log.Info().
		Int64("id", car.ID).
		Str("name", car.Name).
		Str("category", car.Category).
		Str("size", humanize.Bytes(uint64(len(data)))).
		Str("ip", GetRealIP(r, s.trustProxy)).
		Msg("Car uploaded")

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Car uploaded and processed successfully",
		"car":     car,
	})
}

// handleDeleteCar removes a car entry. Stored files stay on disk.
func (s *Server) handleDeleteCar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid car ID")
		return
	}

	if err := s.storage.DeleteCar(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Car not found")
			return
		}
		dbError(w, err, "Failed to delete car")
		return
	}

	log.Info().Int64("id", id).Msg("Car deleted")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Car deleted"})
}

// loadCar resolves the {id} path value, answering 400 or 404 itself.
func (s *Server) loadCar(w http.ResponseWriter, r *http.Request) (*models.Car, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid car ID")
		return nil, false
	}

	car, err := s.storage.GetCar(id)
	if err != nil {
		dbError(w, err, "Failed to fetch car")
		return nil, false
	}
	if car == nil {
		writeError(w, http.StatusNotFound, "Car not found")
		return nil, false
	}

	return car, true
}

// isZip accepts data sniffed as a ZIP container or a file named *.zip.
func isZip(data []byte, name string) bool {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("application/zip") {
			return true
		}
	}

	return strings.HasSuffix(strings.ToLower(name), ".zip")
}

// categoryFilter reads ?category=, treating "all" as no filter.
func categoryFilter(r *http.Request) string {
	c := strings.TrimSpace(r.URL.Query().Get("category"))
	if strings.EqualFold(c, "all") {
		return ""
	}

	return c
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/acrc-community/acrc/internal/vars"
	"github.com/rs/zerolog/log"
)

// maxJSONBody caps admin JSON request bodies.
const maxJSONBody = 64 << 10

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {success:false,message} envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"success": false, "message": message})
}

// writeErrorDetail writes the error envelope with the cause attached.
func writeErrorDetail(w http.ResponseWriter, code int, message string, err error) {
	writeJSON(w, code, map[string]any{"success": false, "message": message, "error": err.Error()})
}

// pathID parses a numeric path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}

	return nil
}

// dbError logs a storage failure and answers 500.
func dbError(w http.ResponseWriter, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, "Database error")
}

// isMaxBytes reports whether err comes from http.MaxBytesReader.
func isMaxBytes(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// handleVersion returns the build information.
func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

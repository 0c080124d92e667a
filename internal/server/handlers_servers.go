package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/acrc-community/acrc/internal/link"
	"github.com/acrc-community/acrc/internal/status"
	"github.com/acrc-community/acrc/internal/storage"
	"github.com/rs/zerolog/log"
)

// linkRequest is the body of the link endpoints.
type linkRequest struct {
	ConnectionLink string `json:"connectionLink"`
	Category       string `json:"category,omitempty"`
}

// handleListServers returns servers, optionally filtered by ?category=.
func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.storage.ListServers(categoryFilter(r))
	if err != nil {
		dbError(w, err, "Failed to list servers")
		return
	}

	writeJSON(w, http.StatusOK, servers)
}

// handleGetServer returns a single server.
func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}

	server, err := s.storage.GetServer(id)
	if err != nil {
		dbError(w, err, "Failed to fetch server")
		return
	}
	if server == nil {
		writeError(w, http.StatusNotFound, "Server not found")
		return
	}

	writeJSON(w, http.StatusOK, server)
}

// handleServerCars returns the cars linked to a server.
func (s *Server) handleServerCars(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}

	cars, err := s.storage.ListCarsByServer(id)
	if err != nil {
		dbError(w, err, "Failed to list server cars")
		return
	}

	writeJSON(w, http.StatusOK, cars)
}

// handleParseLink parses a connection link and probes the server without storing anything.
func (s *Server) handleParseLink(w http.ResponseWriter, r *http.Request) {
	req, ok := readLinkRequest(w, r)
	if !ok {
		return
	}

	pv, err := s.status.Preview(r.Context(), req.ConnectionLink)
	if err != nil {
		linkError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"serverInfo":    pv.Info,
		"serverIP":      pv.IP,
		"httpPort":      pv.HTTPPort,
		"matchedFormat": pv.Format,
		"online":        pv.Online,
	})
}

// handleCreateFromLink registers a server from a connection link.
func (s *Server) handleCreateFromLink(w http.ResponseWriter, r *http.Request) {
	req, ok := readLinkRequest(w, r)
	if !ok {
		return
	}

	server, err := s.status.CreateFromLink(r.Context(), req.ConnectionLink, req.Category)
	if err != nil {
		if errors.Is(err, link.ErrUnparseable) {
			linkError(w, err)
			return
		}
		log.Error().Err(err).Msg("Failed to create server from link")
		writeErrorDetail(w, http.StatusInternalServerError, "Error creating server from link", err)
		return
	}

	s.markRefreshed(server.ServerIP, server.HTTPPort)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Server created successfully",
		"server":  server,
	})
}

// handleUpdateStatus re-probes a server synchronously.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}

	res, err := s.status.Refresh(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "Server not found")
		case errors.Is(err, status.ErrNoAddress):
			linkError(w, err)
		default:
			log.Error().Err(err).Int64("id", id).Msg("Failed to update server status")
			writeErrorDetail(w, http.StatusInternalServerError, "Error updating server status", err)
		}
		return
	}

	s.markRefreshed(res.Server.ServerIP, res.Server.HTTPPort)

	message := "Server status updated"
	if res.Online && !res.Details {
		message = "Server status updated, details unavailable"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"server":  res.Server,
	})
}

// handleDeleteServer removes a server; its cars are kept and detached.
func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid server ID")
		return
	}

	if err := s.storage.DeleteServer(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Server not found")
			return
		}
		dbError(w, err, "Failed to delete server")
		return
	}

	log.Info().Int64("id", id).Msg("Server deleted")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Server deleted"})
}

func readLinkRequest(w http.ResponseWriter, r *http.Request) (*linkRequest, bool) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorDetail(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}

	req.ConnectionLink = strings.TrimSpace(req.ConnectionLink)
	if req.ConnectionLink == "" {
		writeError(w, http.StatusBadRequest, "Connection link is required")
		return nil, false
	}

	return &req, true
}

func linkError(w http.ResponseWriter, err error) {
	writeErrorDetail(w, http.StatusBadRequest, "Failed to parse connection link", err)
}

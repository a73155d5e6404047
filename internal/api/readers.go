package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calder-systems/punchcore/internal/reader"
)

// handleListReaders returns all registered readers.
func (s *Server) handleListReaders(w http.ResponseWriter, r *http.Request) {
	readers, err := s.readers.ListReaders(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list readers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readers": readers, "count": len(readers)})
}

// handleGetReader returns a single reader by ID.
func (s *Server) handleGetReader(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rdr, err := s.readers.GetReader(r.Context(), id)
	if err != nil {
		if errors.Is(err, reader.ErrReaderNotFound) {
			writeNotFound(w, "reader not found")
			return
		}
		writeInternalError(w, "failed to get reader")
		return
	}

	writeJSON(w, http.StatusOK, rdr)
}

// handleCreateReader provisions a new reader.
func (s *Server) handleCreateReader(w http.ResponseWriter, r *http.Request) {
	var rdr reader.Reader
	if err := json.NewDecoder(r.Body).Decode(&rdr); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.readers.CreateReader(r.Context(), &rdr); err != nil {
		switch {
		case errors.Is(err, reader.ErrInvalidReader), errors.Is(err, reader.ErrInvalidLocation):
			writeBadRequest(w, err.Error())
		case errors.Is(err, reader.ErrReaderExists):
			writeConflict(w, "reader already exists")
		default:
			writeInternalError(w, "failed to create reader")
		}
		return
	}

	writeJSON(w, http.StatusCreated, rdr)
}

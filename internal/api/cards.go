package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calder-systems/punchcore/internal/card"
)

// handleListCards returns all issued cards.
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.cards.ListCards(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list cards")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards, "count": len(cards)})
}

// handleGetCard returns a single card by ID.
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.cards.GetCard(r.Context(), id)
	if err != nil {
		if errors.Is(err, card.ErrCardNotFound) {
			writeNotFound(w, "card not found")
			return
		}
		writeInternalError(w, "failed to get card")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// handleCreateCard issues a new card with an opening balance.
func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var c card.Card
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.cards.CreateCard(r.Context(), &c); err != nil {
		switch {
		case errors.Is(err, card.ErrInvalidCard):
			writeBadRequest(w, err.Error())
		case errors.Is(err, card.ErrCardExists):
			writeConflict(w, "card already exists")
		default:
			writeInternalError(w, "failed to create card")
		}
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

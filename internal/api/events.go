package api

import (
	"net/http"
	"strconv"

	"github.com/calder-systems/punchcore/internal/punchlog"
)

// handleListEvents returns punch log entries in append order.
//
// Query parameters:
//   - card_id: filter by card
//   - reader_id: filter by reader
//   - direction: filter by direction (check_in, check_out)
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := punchlog.Filter{
		CardID:   r.URL.Query().Get("card_id"),
		ReaderID: r.URL.Query().Get("reader_id"),
	}

	if dir := r.URL.Query().Get("direction"); dir != "" {
		switch punchlog.Direction(dir) {
		case punchlog.DirectionCheckIn, punchlog.DirectionCheckOut:
			filter.Direction = punchlog.Direction(dir)
		default:
			writeBadRequest(w, "direction must be check_in or check_out")
			return
		}
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

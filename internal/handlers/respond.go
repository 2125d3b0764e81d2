package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/internal/storage"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors to HTTP status codes. Anything not in the
// taxonomy is a 500 with a generic body; the detail goes to the log, not
// the client.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidInterval),
		errors.Is(err, booking.ErrInvalidReference),
		errors.Is(err, booking.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, booking.ErrSlotConflict),
		errors.Is(err, storage.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, booking.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, booking.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

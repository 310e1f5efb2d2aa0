package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/taskhive/taskhive-be/internal/services"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Message: message, Data: data})
}

// respondError maps a service error onto the HTTP taxonomy and writes a
// failure envelope. Unrecognized errors become a generic 500; their detail is
// logged server-side and never leaks to the client.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidID),
		errors.Is(err, services.ErrConflict):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = err.Error()
	default:
		log.Error().Err(err).Msg("Unhandled error in request")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// respondBadRequest writes a 400 failure envelope with the given message.
func respondBadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// decodeJSON decodes a request body into dst, rejecting unknown fields so
// typos surface at the API boundary instead of silently dropping data.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

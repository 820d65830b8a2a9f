package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/google/uuid"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	const op = "handler.decodeJSON"

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body is too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required")
		default:
			return domain.Invalid(op, "Request body is not valid JSON")
		}
	}
	return nil
}

// parseUUID parses an optional UUID field. Empty input yields uuid.Nil.
func parseUUID(op, field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(op, field, "Must be a valid UUID")
	}
	return id, nil
}

// queryInt32 reads a non-negative integer query parameter.
func queryInt32(r *http.Request, name string, def int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}

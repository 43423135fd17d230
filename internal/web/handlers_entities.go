package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// maxEntityBody bounds the JSON body of a single-entity create.
const maxEntityBody = 64 << 10

// handleCreateEntity validates and inserts one record, allocating its code
// when the body does not carry one.
func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	kindKey := chi.URLParam(r, "kind")

	r.Body = http.MaxBytesReader(w, r.Body, maxEntityBody)
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}

	fields, err := stringFields(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, err := s.service.Create(r.Context(), kindKey, fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// stringFields flattens a JSON object to the string cells the validator
// expects. Nulls are dropped; nested values are rejected.
func stringFields(body map[string]any) (map[string]string, error) {
	fields := make(map[string]string, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case nil:
		case string:
			fields[k] = val
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("%w: field %q must be a scalar", errBadBody, k)
		}
	}
	return fields, nil
}

package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type familyInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Prefix   string `json:"prefix"`
	Width    int    `json:"width"`
	Base     int64  `json:"base"`
	Capacity int64  `json:"capacity"`
}

// handleListFamilies returns every registered code family.
func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	families := s.service.Families()
	out := make([]familyInfo, len(families))
	for i, f := range families {
		out[i] = familyInfo{
			Name:     f.Name,
			Kind:     string(f.Kind),
			Prefix:   f.Prefix,
			Width:    f.Width,
			Base:     f.Base(),
			Capacity: f.Capacity(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleNextCode previews the next code of a family. Nothing is reserved.
func (s *Server) handleNextCode(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")

	code, err := s.service.NextCode(r.Context(), family)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"family": family, "code": code})
}

// handleValidateCode reports whether ?code= is well-formed for the family.
func (s *Server) handleValidateCode(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")

	code, present := r.URL.Query()["code"]
	if !present {
		s.respondError(w, r, fmt.Errorf("%w: missing code parameter", errBadBody))
		return
	}

	valid, err := s.service.ValidateCode(family, code[0])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"family": family, "code": code[0], "valid": valid})
}

package web

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/inventory/internal/core"
)

type columnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type kindInfo struct {
	Key        string       `json:"key"`
	Label      string       `json:"label"`
	Family     string       `json:"family,omitempty"`
	CodeColumn string       `json:"codeColumn,omitempty"`
	NaturalKey string       `json:"naturalKey,omitempty"`
	Columns    []columnInfo `json:"columns"`
}

// handleListKinds returns every registered import kind with its schema.
func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	kinds := s.service.Kinds()
	out := make([]kindInfo, 0, len(kinds))
	for _, k := range kinds {
		info := kindInfo{
			Key:        k.Key,
			Label:      k.Label,
			Family:     k.Family,
			CodeColumn: k.Entity.CodeColumn,
			NaturalKey: k.Entity.NaturalKeyColumn,
			Columns:    make([]columnInfo, len(k.Columns)),
		}
		for i, c := range k.Columns {
			info.Columns[i] = columnInfo{Name: c.Name, Type: c.Type.String(), Required: c.Required}
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDownloadTemplate returns an empty CSV with the kind's headers.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	kindKey := chi.URLParam(r, "kind")

	kind, ok := core.Get(kindKey)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownKind, kindKey))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.csv"`, kind.Key))
	if err := writeTemplate(w, kind); err != nil {
		s.respondError(w, r, err)
	}
}

// writeTemplate writes the header row of kind as CSV.
func writeTemplate(w io.Writer, kind core.ImportKind) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(kind.Columns.Headers()); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/logging"
)

// handleImport runs a bulk import of the uploaded CSV.
//
// The file is accepted either as the "file" part of a multipart form or as
// the raw request body. It is streamed into the pipeline, never buffered
// whole. Query parameters: delimiter, encoding, dedupe.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kindKey := chi.URLParam(r, "kind")

	opts, err := s.importOptions(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	file, err := uploadedFile(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logger := logging.WithFields(r.Context(), "kind", kindKey)
	logger.Info("import requested")

	report, err := s.service.Import(r.Context(), kindKey, file, opts)
	err = markTooLarge(err)
	if err != nil && report == nil {
		s.respondError(w, r, err)
		return
	}

	resp := report.Response()
	switch {
	case err != nil:
		// Partial report: the run stopped on a fatal error. Rows before the
		// stop stay inserted.
		logger.Error("import truncated", "run_id", report.RunID, "error", err)
		writeJSON(w, statusFor(err), truncatedImport{ImportResponse: resp, Error: core.MapError(err)})
	case resp.Success:
		writeJSON(w, http.StatusOK, resp)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	}
}

// truncatedImport is the response for a run that stopped early.
type truncatedImport struct {
	core.ImportResponse
	Error core.UserMessage `json:"error"`
}

// markTooLarge tags errors caused by the body size limit with
// errFileTooLarge, wherever in the run they surfaced.
func markTooLarge(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) && !errors.Is(err, errFileTooLarge) {
		return fmt.Errorf("%w: %w", errFileTooLarge, err)
	}
	return err
}

// importOptions builds the pipeline options from query parameters,
// falling back to the configured defaults.
func (s *Server) importOptions(r *http.Request) (core.ImportOptions, error) {
	opts := s.service.DefaultImportOptions()
	q := r.URL.Query()

	delim := q.Get("delimiter")
	if delim == "" {
		delim = s.cfg.Import.Delimiter
	}
	d, err := core.ParseDelimiter(delim)
	if err != nil {
		return opts, err
	}
	opts.Reader.Delimiter = d
	opts.Reader.Encoding = strings.TrimSpace(q.Get("encoding"))

	if v := q.Get("dedupe"); v != "" {
		dedupe, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%w: dedupe must be true or false", core.ErrInvalidOptions)
		}
		opts.DedupeBatch = dedupe
	}

	return opts, nil
}

// uploadedFile returns a reader over the CSV content of r.
func uploadedFile(r *http.Request) (io.Reader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		if r.ContentLength == 0 {
			return nil, errNoFile
		}
		return r.Body, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadBody, err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errNoFile
		}
		if err != nil {
			if err := markTooLarge(err); errors.Is(err, errFileTooLarge) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", errBadBody, err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
		_ = part.Close()
	}
}

// handleImportStatus returns the import limiter's current state.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/JonMunkholm/inventory/internal/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.ValidationErrors{{Field: "name", Message: "required"}}, http.StatusUnprocessableEntity},
		{"unknown kind", fmt.Errorf("import: %w", core.ErrUnknownKind), http.StatusNotFound},
		{"duplicate", core.ErrDuplicate, http.StatusConflict},
		{"overflow", &core.AllocationError{Family: "company", Reason: core.AllocationOverflow, Err: core.ErrSequenceOverflow}, http.StatusConflict},
		{"allocation store failure", &core.AllocationError{Family: "company", Reason: core.AllocationStoreQuery, Err: core.ErrStoreUnavailable}, http.StatusServiceUnavailable},
		{"too many imports", core.ErrTooManyImports, http.StatusServiceUnavailable},
		{"file too large", errFileTooLarge, http.StatusRequestEntityTooLarge},
		{"malformed", fmt.Errorf("header: %w", core.ErrMalformedInput), http.StatusBadRequest},
		{"timeout", fmt.Errorf("import: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

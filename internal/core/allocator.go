package core

// allocator.go derives the next unused code of a family by scanning the store.
//
// There is no counter table: every call re-reads the codes already issued,
// takes the highest decodable rank and encodes its successor. This heals
// itself after manual edits but is a read-then-write sequence, so two
// concurrent callers can propose the same code. The store's unique
// constraint catches that; callers persisting an allocated code retry on
// conflict (see CreateWithCode).

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/JonMunkholm/inventory/internal/core")

// ErrSequenceOverflow is returned when a family has issued every rank that
// fits in its width.
var ErrSequenceOverflow = errors.New("code sequence exhausted")

// AllocationReason classifies an AllocationError.
type AllocationReason string

const (
	AllocationOverflow   AllocationReason = "overflow"
	AllocationStoreQuery AllocationReason = "store"
)

// AllocationError is returned by Allocator.NextCode.
type AllocationError struct {
	Family string
	Reason AllocationReason
	Err    error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate %s code (%s): %v", e.Family, e.Reason, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// CodeScanner is the read capability the allocator needs.
// Every Store satisfies it.
type CodeScanner interface {
	FindByPrefix(ctx context.Context, kind EntityKind, prefix string) ([]string, error)
}

// Allocator produces the next code of a family from the store's contents.
// It holds no state of its own.
type Allocator struct {
	scanner CodeScanner
}

// NewAllocator creates an allocator reading codes from scanner.
func NewAllocator(scanner CodeScanner) *Allocator {
	return &Allocator{scanner: scanner}
}

// NextCode returns the successor of the highest code currently stored for
// family. Stored values that carry the prefix but do not decode (legacy or
// hand-edited codes) are ignored.
func (a *Allocator) NextCode(ctx context.Context, family CodeFamily) (string, error) {
	ctx, span := tracer.Start(ctx, "sequence.next_code")
	defer span.End()
	span.SetAttributes(attribute.String("family", family.Name))

	existing, err := a.scanner.FindByPrefix(ctx, family.Kind, family.Prefix)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store query failed")
		return "", &AllocationError{Family: family.Name, Reason: AllocationStoreQuery, Err: err}
	}

	maxRank := family.Start - 1
	for _, c := range existing {
		rank, ok := family.Decode(c)
		if !ok {
			continue
		}
		if rank > maxRank {
			maxRank = rank
		}
	}

	next := maxRank + 1
	span.SetAttributes(
		attribute.Int("scanned", len(existing)),
		attribute.Int64("rank", next),
	)

	if next >= family.Capacity() {
		err := fmt.Errorf("next rank %d exceeds width %d: %w", next, family.Width, ErrSequenceOverflow)
		span.SetStatus(codes.Error, "overflow")
		return "", &AllocationError{Family: family.Name, Reason: AllocationOverflow, Err: err}
	}

	return family.Encode(next)
}

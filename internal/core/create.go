package core

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultMaxAttempts allows one retry after a code conflict.
const DefaultMaxAttempts = 2

// CreateWithCode allocates the next code of family, builds a record with it
// and inserts it. When the insert conflicts on the family's code column
// (another caller took the same code between scan and insert) the store is
// re-scanned and the insert retried, up to maxAttempts inserts in total.
// Conflicts on any other column are returned immediately.
func CreateWithCode(ctx context.Context, alloc *Allocator, store Store, family CodeFamily, build func(code string) Record, maxAttempts int) (Record, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	def, _ := Entity(family.Kind)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := alloc.NextCode(ctx, family)
		if err != nil {
			return Record{}, err
		}

		rec, err := store.Insert(ctx, family.Kind, build(code))
		if err == nil {
			return rec, nil
		}

		ce, ok := AsConflict(err)
		if !ok || (def.CodeColumn != "" && ce.Field != def.CodeColumn) {
			return Record{}, err
		}

		lastErr = err
		slog.Debug("code conflict, retrying allocation",
			"family", family.Name,
			"code", code,
			"attempt", attempt,
		)
	}

	return Record{}, fmt.Errorf("allocate %s code: gave up after %d attempts: %w", family.Name, maxAttempts, lastErr)
}

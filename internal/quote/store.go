package quote

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a quote or one of its versions does not exist.
	ErrNotFound = errors.New("quote: not found")
	// ErrVersionConflict is returned when the version number is already taken.
	ErrVersionConflict = errors.New("quote: version already exists")
)

// Store persists immutable quote versions. Versions are never updated.
type Store interface {
	// Create inserts v. It fails with ErrVersionConflict when
	// (v.QuoteID, v.Number) exists.
	Create(ctx context.Context, v Version) error
	// Latest returns the highest-numbered version of the quote.
	Latest(ctx context.Context, quoteID string) (Version, error)
	// Get returns one version by number.
	Get(ctx context.Context, quoteID string, number int) (Version, error)
	// List returns versions newest first together with the total count.
	List(ctx context.Context, quoteID string, limit, offset int) ([]Version, int, error)
}

package store

import (
	"context"
)

// Store defines the database operations the decision engine needs. Both
// checks are single round trips; the engine never caches their results.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// OwnsAny reports whether address holds a strictly positive summed
	// balance over any token id in tokenIDs
	OwnsAny(ctx context.Context, address string, tokenIDs []int64) (bool, error)

	// IsWhitelisted reports whether address has a whitelist entry that
	// has not been claimed yet
	IsWhitelisted(ctx context.Context, address string) (bool, error)
}

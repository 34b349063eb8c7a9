package repositories

import (
	"context"
)

// UnitOfWork serializes access to the token store
type UnitOfWork interface {
	// Do executes the given function within a write transaction. Mutations commit together or not at all.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	// Read executes the given function with exclusive, non-transactional access
	Read(ctx context.Context, fn func(ctx context.Context) error) error
}

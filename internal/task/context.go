package task

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const accountKey contextKey = "account_id"

// WithAccount returns a context scoped to the given account. All
// downstream data access for a task runs under an account-scoped
// context so multi-tenant reads stay attributable.
func WithAccount(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey, accountID)
}

// AccountFrom extracts the account ID from the context.
func AccountFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey).(uuid.UUID)
	return id, ok
}

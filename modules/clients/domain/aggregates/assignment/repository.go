package assignment

import "context"

// Repository is scoped to the tenant carried by ctx.
type Repository interface {
	// ListPage returns rows of the given clients ordered by (client_id, user_id).
	ListPage(ctx context.Context, clientIDs []string, limit, offset int) ([]Assignment, error)
	// Upsert inserts rows for one client, updating capabilities on conflict.
	Upsert(ctx context.Context, clientID string, rows []Assignment) error
	Delete(ctx context.Context, clientID, userID string) error
}

package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/clientdesk/pkg/composables"
)

const uniqueViolation = "23505"

func tenantID(ctx context.Context) (uuid.UUID, error) {
	return composables.UseTenantID(ctx)
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

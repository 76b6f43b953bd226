package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
)

// isDuplicateKey reports whether err is a tolerated duplicate-key conflict.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, assignment.ErrDuplicate) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}

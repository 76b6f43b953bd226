package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/pkg/composables"
)

const (
	assignmentListPageQuery = `
SELECT client_id, user_id, can_view, can_post, can_moderate, created_at
FROM client_assignments
WHERE tenant_id = $1 AND client_id = ANY($2::text[])
ORDER BY client_id, user_id
LIMIT $3 OFFSET $4`

	assignmentUpsertQuery = `
INSERT INTO client_assignments (tenant_id, client_id, user_id, can_view, can_post, can_moderate)
SELECT $1, $2, u.user_id, u.can_view, u.can_post, u.can_moderate
FROM unnest($3::text[], $4::bool[], $5::bool[], $6::bool[]) AS u(user_id, can_view, can_post, can_moderate)
ON CONFLICT (tenant_id, client_id, user_id) DO UPDATE
SET can_view = EXCLUDED.can_view,
    can_post = EXCLUDED.can_post,
    can_moderate = EXCLUDED.can_moderate`

	assignmentDeleteQuery = `
DELETE FROM client_assignments
WHERE tenant_id = $1 AND client_id = $2 AND user_id = $3`
)

type AssignmentRepository struct{}

func NewAssignmentRepository() assignment.Repository {
	return &AssignmentRepository{}
}

func (r *AssignmentRepository) ListPage(ctx context.Context, clientIDs []string, limit, offset int) ([]assignment.Assignment, error) {
	if len(clientIDs) == 0 {
		return nil, nil
	}
	tenant, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	return composables.InTenantTxResult(ctx, func(txCtx context.Context) ([]assignment.Assignment, error) {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return nil, err
		}
		rows, err := tx.Query(txCtx, assignmentListPageQuery, tenant, clientIDs, limit, offset)
		if err != nil {
			return nil, errors.Wrap(err, "query assignments")
		}
		defer rows.Close()

		out := make([]assignment.Assignment, 0, limit)
		for rows.Next() {
			var (
				clientID, userID string
				caps             assignment.Capabilities
				createdAt        time.Time
			)
			if err := rows.Scan(&clientID, &userID, &caps.CanView, &caps.CanPost, &caps.CanModerate, &createdAt); err != nil {
				return nil, errors.Wrap(err, "scan assignment")
			}
			out = append(out, assignment.Hydrate(clientID, userID, caps, createdAt))
		}
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "iterate assignments")
		}
		return out, nil
	})
}

func (r *AssignmentRepository) Upsert(ctx context.Context, clientID string, rows []assignment.Assignment) error {
	if len(rows) == 0 {
		return nil
	}
	tenant, err := tenantID(ctx)
	if err != nil {
		return err
	}

	userIDs := make([]string, len(rows))
	canView := make([]bool, len(rows))
	canPost := make([]bool, len(rows))
	canModerate := make([]bool, len(rows))
	for i, row := range rows {
		caps := row.Capabilities()
		userIDs[i] = row.UserID()
		canView[i] = caps.CanView
		canPost[i] = caps.CanPost
		canModerate[i] = caps.CanModerate
	}

	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(txCtx, assignmentUpsertQuery, tenant, clientID, userIDs, canView, canPost, canModerate); err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: %w", assignment.ErrDuplicate, err)
			}
			return errors.Wrapf(err, "upsert assignments for client %s", clientID)
		}
		return nil
	})
}

func (r *AssignmentRepository) Delete(ctx context.Context, clientID, userID string) error {
	tenant, err := tenantID(ctx)
	if err != nil {
		return err
	}
	return composables.InTenantTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(txCtx, assignmentDeleteQuery, tenant, clientID, userID); err != nil {
			return errors.Wrapf(err, "delete assignment %s/%s", clientID, userID)
		}
		return nil
	})
}

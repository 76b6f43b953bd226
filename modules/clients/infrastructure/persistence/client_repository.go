package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
	"github.com/iota-uz/clientdesk/pkg/composables"
)

const (
	workspaceFindByNameQuery = `
SELECT id, tenant_id, name, created_at
FROM workspaces
WHERE tenant_id = $1 AND lower(name) = lower($2)`

	workspaceInsertQuery = `
INSERT INTO workspaces (id, tenant_id, name)
VALUES ($1, $2, $3)
ON CONFLICT (tenant_id, (lower(name))) DO UPDATE SET name = workspaces.name
RETURNING id, tenant_id, name, created_at`

	clientExistsQuery = `
SELECT EXISTS (
	SELECT 1 FROM clients WHERE tenant_id = $1 AND workspace_id = $2 AND lower(name) = lower($3)
)`

	clientInsertQuery = `
INSERT INTO clients (
	id,
	tenant_id,
	workspace_id,
	name,
	tax_id,
	registration_number,
	contact_name,
	contact_email,
	contact_phone,
	address,
	city,
	notes,
	external_id,
	drive_folder_id,
	credentials
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15::jsonb)
RETURNING created_at`

	clientListQuery = `
SELECT
	c.id, c.tenant_id, c.workspace_id, w.name,
	c.name, c.tax_id, c.registration_number,
	c.contact_name, c.contact_email, c.contact_phone,
	c.address, c.city, c.notes, c.external_id, c.drive_folder_id,
	c.credentials, c.created_at
FROM clients c
JOIN workspaces w ON w.id = c.workspace_id
WHERE c.tenant_id = $1 AND ($2::uuid IS NULL OR c.workspace_id = $2)
ORDER BY lower(w.name), lower(c.name), c.id
LIMIT $3 OFFSET $4`
)

type ClientRepository struct{}

func NewClientRepository() client.Repository {
	return &ClientRepository{}
}

func (r *ClientRepository) FindWorkspaceByName(ctx context.Context, name string) (client.Workspace, error) {
	tenant, err := tenantID(ctx)
	if err != nil {
		return client.Workspace{}, err
	}
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (client.Workspace, error) {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return client.Workspace{}, err
		}
		var (
			id, tid   uuid.UUID
			wsName    string
			createdAt time.Time
		)
		if err := tx.QueryRow(txCtx, workspaceFindByNameQuery, tenant, name).Scan(&id, &tid, &wsName, &createdAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return client.Workspace{}, client.ErrWorkspaceNotFound
			}
			return client.Workspace{}, errors.Wrap(err, "find workspace")
		}
		return client.HydrateWorkspace(id, tid, wsName, createdAt), nil
	})
}

// CreateWorkspace inserts w, or returns the existing workspace with the same name.
func (r *ClientRepository) CreateWorkspace(ctx context.Context, w client.Workspace) (client.Workspace, error) {
	tenant, err := tenantID(ctx)
	if err != nil {
		return client.Workspace{}, err
	}
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (client.Workspace, error) {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return client.Workspace{}, err
		}
		var (
			id, tid   uuid.UUID
			wsName    string
			createdAt time.Time
		)
		if err := tx.QueryRow(txCtx, workspaceInsertQuery, w.ID(), tenant, w.Name()).Scan(&id, &tid, &wsName, &createdAt); err != nil {
			return client.Workspace{}, errors.Wrapf(err, "create workspace %q", w.Name())
		}
		return client.HydrateWorkspace(id, tid, wsName, createdAt), nil
	})
}

func (r *ClientRepository) ExistsByName(ctx context.Context, workspaceID uuid.UUID, name string) (bool, error) {
	tenant, err := tenantID(ctx)
	if err != nil {
		return false, err
	}
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (bool, error) {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return false, err
		}
		var exists bool
		if err := tx.QueryRow(txCtx, clientExistsQuery, tenant, workspaceID, name).Scan(&exists); err != nil {
			return false, errors.Wrap(err, "client exists")
		}
		return exists, nil
	})
}

func (r *ClientRepository) Create(ctx context.Context, c client.Client) (client.Client, error) {
	tenant, err := tenantID(ctx)
	if err != nil {
		return client.Client{}, err
	}
	d := c.Details()
	creds, err := json.Marshal(d.Credentials)
	if err != nil {
		return client.Client{}, errors.Wrap(err, "marshal credentials")
	}

	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (client.Client, error) {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return client.Client{}, err
		}
		var createdAt time.Time
		err = tx.QueryRow(txCtx, clientInsertQuery,
			c.ID(),
			tenant,
			c.WorkspaceID(),
			d.Name,
			d.TaxID,
			d.RegistrationNumber,
			d.Contact.Name,
			d.Contact.Email,
			d.Contact.Phone,
			d.Address,
			d.City,
			d.Notes,
			d.ExternalID,
			d.DriveFolderID,
			string(creds),
		).Scan(&createdAt)
		if err != nil {
			if IsUniqueViolation(err) {
				return client.Client{}, fmt.Errorf("%w: %w", client.ErrDuplicateClient, err)
			}
			return client.Client{}, errors.Wrapf(err, "create client %q", d.Name)
		}
		return client.Hydrate(c.ID(), tenant, c.WorkspaceID(), d, createdAt), nil
	})
}

func (r *ClientRepository) List(ctx context.Context, params *client.FindParams) ([]client.Listed, error) {
	if params == nil {
		params = &client.FindParams{}
	}
	tenant, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 1000
	}
	offset := max(params.Offset, 0)
	var workspaceFilter *uuid.UUID
	if params.WorkspaceID != uuid.Nil {
		workspaceFilter = &params.WorkspaceID
	}

	return composables.InTenantTxResult(ctx, func(txCtx context.Context) ([]client.Listed, error) {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return nil, err
		}
		rows, err := tx.Query(txCtx, clientListQuery, tenant, workspaceFilter, limit, offset)
		if err != nil {
			return nil, errors.Wrap(err, "query clients")
		}
		defer rows.Close()

		out := make([]client.Listed, 0, limit)
		for rows.Next() {
			var (
				id, tid, wsID uuid.UUID
				wsName        string
				d             client.Details
				creds         []byte
				createdAt     time.Time
			)
			if err := rows.Scan(
				&id, &tid, &wsID, &wsName,
				&d.Name, &d.TaxID, &d.RegistrationNumber,
				&d.Contact.Name, &d.Contact.Email, &d.Contact.Phone,
				&d.Address, &d.City, &d.Notes, &d.ExternalID, &d.DriveFolderID,
				&creds, &createdAt,
			); err != nil {
				return nil, errors.Wrap(err, "scan client")
			}
			if len(creds) > 0 {
				if err := json.Unmarshal(creds, &d.Credentials); err != nil {
					return nil, errors.Wrapf(err, "decode credentials of client %s", id)
				}
			}
			out = append(out, client.Listed{
				Client:        client.Hydrate(id, tid, wsID, d, createdAt),
				WorkspaceName: wsName,
			})
		}
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "iterate clients")
		}
		return out, nil
	})
}

package client

import (
	"context"

	"github.com/google/uuid"
)

type FindParams struct {
	WorkspaceID uuid.UUID
	Limit       int
	Offset      int
}

// Repository is scoped to the tenant carried by ctx.
type Repository interface {
	FindWorkspaceByName(ctx context.Context, name string) (Workspace, error)
	CreateWorkspace(ctx context.Context, w Workspace) (Workspace, error)
	ExistsByName(ctx context.Context, workspaceID uuid.UUID, name string) (bool, error)
	Create(ctx context.Context, c Client) (Client, error)
	List(ctx context.Context, params *FindParams) ([]Listed, error)
}

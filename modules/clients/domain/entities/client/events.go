package client

import (
	"time"

	"github.com/google/uuid"
)

// ImportedEvent is published after a non dry-run import committed rows.
type ImportedEvent struct {
	TenantID          uuid.UUID `json:"tenant_id"`
	Created           int       `json:"created"`
	WorkspacesCreated int       `json:"workspaces_created"`
	Failed            int       `json:"failed"`
	At                time.Time `json:"at"`
}

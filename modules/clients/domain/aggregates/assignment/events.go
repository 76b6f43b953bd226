package assignment

import (
	"time"

	"github.com/google/uuid"
)

// ChangedEvent is published after a save attempt, successful or not.
type ChangedEvent struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	ClientIDs []string  `json:"client_ids"`
	Added     int       `json:"added"`
	Removed   int       `json:"removed"`
	Failed    int       `json:"failed"`
	At        time.Time `json:"at"`
}

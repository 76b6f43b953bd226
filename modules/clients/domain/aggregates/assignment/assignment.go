package assignment

import (
	"errors"
	"strings"
	"time"
)

// ErrDuplicate marks an insert that collided with an existing (client, user) row.
var ErrDuplicate = errors.New("assignment already exists")

type Capabilities struct {
	CanView     bool `json:"can_view"`
	CanPost     bool `json:"can_post"`
	CanModerate bool `json:"can_moderate"`
}

// DefaultCapabilities are granted to every newly added assignee.
func DefaultCapabilities() Capabilities {
	return Capabilities{CanView: true, CanPost: true, CanModerate: false}
}

type Assignment struct {
	clientID     string
	userID       string
	capabilities Capabilities
	createdAt    time.Time
}

func New(clientID, userID string) Assignment {
	return Assignment{
		clientID:     strings.TrimSpace(clientID),
		userID:       strings.TrimSpace(userID),
		capabilities: DefaultCapabilities(),
	}
}

func Hydrate(clientID, userID string, caps Capabilities, createdAt time.Time) Assignment {
	return Assignment{
		clientID:     clientID,
		userID:       userID,
		capabilities: caps,
		createdAt:    createdAt,
	}
}

func (a Assignment) ClientID() string           { return a.clientID }
func (a Assignment) UserID() string             { return a.userID }
func (a Assignment) Capabilities() Capabilities { return a.capabilities }
func (a Assignment) CreatedAt() time.Time       { return a.createdAt }

package client

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrDuplicateClient   = errors.New("client with this name already exists in workspace")
)

type Workspace struct {
	id        uuid.UUID
	tenantID  uuid.UUID
	name      string
	createdAt time.Time
}

func NewWorkspace(tenantID uuid.UUID, name string) Workspace {
	return Workspace{id: uuid.New(), tenantID: tenantID, name: strings.TrimSpace(name)}
}

func HydrateWorkspace(id, tenantID uuid.UUID, name string, createdAt time.Time) Workspace {
	return Workspace{id: id, tenantID: tenantID, name: name, createdAt: createdAt}
}

func (w Workspace) ID() uuid.UUID        { return w.id }
func (w Workspace) TenantID() uuid.UUID  { return w.tenantID }
func (w Workspace) Name() string         { return w.name }
func (w Workspace) CreatedAt() time.Time { return w.createdAt }

// Login is one credential pair stored for a client.
type Login struct {
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
}

func (l Login) IsZero() bool { return l.Login == "" && l.Password == "" }

type Credentials struct {
	Bank      Login `json:"bank"`
	TaxPortal Login `json:"tax_portal"`
	Payroll   Login `json:"payroll"`
}

type Contact struct {
	Name  string
	Email string
	Phone string
}

// Details holds the descriptive columns of a client.
type Details struct {
	Name               string
	TaxID              string
	RegistrationNumber string
	Contact            Contact
	Address            string
	City               string
	Notes              string
	ExternalID         string
	DriveFolderID      string
	Credentials        Credentials
}

type Client struct {
	id          uuid.UUID
	tenantID    uuid.UUID
	workspaceID uuid.UUID
	details     Details
	createdAt   time.Time
}

func New(tenantID, workspaceID uuid.UUID, details Details) Client {
	details.Name = strings.TrimSpace(details.Name)
	return Client{
		id:          uuid.New(),
		tenantID:    tenantID,
		workspaceID: workspaceID,
		details:     details,
	}
}

func Hydrate(id, tenantID, workspaceID uuid.UUID, details Details, createdAt time.Time) Client {
	return Client{
		id:          id,
		tenantID:    tenantID,
		workspaceID: workspaceID,
		details:     details,
		createdAt:   createdAt,
	}
}

func (c Client) ID() uuid.UUID          { return c.id }
func (c Client) TenantID() uuid.UUID    { return c.tenantID }
func (c Client) WorkspaceID() uuid.UUID { return c.workspaceID }
func (c Client) Name() string           { return c.details.Name }
func (c Client) Details() Details       { return c.details }
func (c Client) CreatedAt() time.Time   { return c.createdAt }

// Listed is a client joined with its workspace name, as used by exports.
type Listed struct {
	Client
	WorkspaceName string
}

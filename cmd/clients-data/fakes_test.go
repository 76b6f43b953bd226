package main

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
)

var errWriteFailed = errors.New("write failed")

type memClients struct {
	mu         sync.Mutex
	workspaces []client.Workspace
	clients    []client.Client
	createErr  error
}

func (m *memClients) FindWorkspaceByName(_ context.Context, name string) (client.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workspaces {
		if strings.EqualFold(w.Name(), name) {
			return w, nil
		}
	}
	return client.Workspace{}, client.ErrWorkspaceNotFound
}

func (m *memClients) CreateWorkspace(_ context.Context, w client.Workspace) (client.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaces = append(m.workspaces, w)
	return w, nil
}

func (m *memClients) ExistsByName(_ context.Context, workspaceID uuid.UUID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.WorkspaceID() == workspaceID && strings.EqualFold(c.Name(), name) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memClients) Create(_ context.Context, c client.Client) (client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return client.Client{}, m.createErr
	}
	m.clients = append(m.clients, c)
	return c, nil
}

func (m *memClients) List(_ context.Context, params *client.FindParams) ([]client.Listed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := map[uuid.UUID]string{}
	for _, w := range m.workspaces {
		names[w.ID()] = w.Name()
	}
	var all []client.Listed
	for _, c := range m.clients {
		all = append(all, client.Listed{Client: c, WorkspaceName: names[c.WorkspaceID()]})
	}
	if params.Offset >= len(all) {
		return nil, nil
	}
	return all[params.Offset:min(params.Offset+params.Limit, len(all))], nil
}

type memAssignments struct {
	mu     sync.Mutex
	rows   map[string]map[string]struct{}
	failOn string
}

func newMemAssignments() *memAssignments {
	return &memAssignments{rows: map[string]map[string]struct{}{}}
}

func (m *memAssignments) ListPage(_ context.Context, clientIDs []string, limit, offset int) ([]assignment.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []assignment.Assignment
	for _, clientID := range clientIDs {
		for userID := range m.rows[clientID] {
			all = append(all, assignment.New(clientID, userID))
		}
	}
	slices.SortFunc(all, func(a, b assignment.Assignment) int {
		if c := strings.Compare(a.ClientID(), b.ClientID()); c != 0 {
			return c
		}
		return strings.Compare(a.UserID(), b.UserID())
	})
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (m *memAssignments) Upsert(_ context.Context, clientID string, rows []assignment.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clientID == m.failOn {
		return errWriteFailed
	}
	if m.rows[clientID] == nil {
		m.rows[clientID] = map[string]struct{}{}
	}
	for _, row := range rows {
		m.rows[clientID][row.UserID()] = struct{}{}
	}
	return nil
}

func (m *memAssignments) Delete(_ context.Context, clientID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clientID == m.failOn {
		return errWriteFailed
	}
	delete(m.rows[clientID], userID)
	return nil
}

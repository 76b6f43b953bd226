package controllers

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
)

var errStoreDown = errors.New("store unavailable")

type fakeAssignments struct {
	mu        sync.Mutex
	rows      map[string]map[string]struct{}
	failOn    string
	listError error
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{rows: map[string]map[string]struct{}{}}
}

func (f *fakeAssignments) ListPage(_ context.Context, clientIDs []string, limit, offset int) ([]assignment.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listError != nil {
		return nil, f.listError
	}
	var all []assignment.Assignment
	for _, clientID := range clientIDs {
		for userID := range f.rows[clientID] {
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

func (f *fakeAssignments) Upsert(_ context.Context, clientID string, rows []assignment.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if clientID == f.failOn {
		return errStoreDown
	}
	if f.rows[clientID] == nil {
		f.rows[clientID] = map[string]struct{}{}
	}
	for _, row := range rows {
		f.rows[clientID][row.UserID()] = struct{}{}
	}
	return nil
}

func (f *fakeAssignments) Delete(_ context.Context, clientID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if clientID == f.failOn {
		return errStoreDown
	}
	delete(f.rows[clientID], userID)
	return nil
}

type fakeClients struct {
	mu         sync.Mutex
	workspaces []client.Workspace
	clients    []client.Client
}

func (f *fakeClients) FindWorkspaceByName(_ context.Context, name string) (client.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.workspaces {
		if strings.EqualFold(w.Name(), name) {
			return w, nil
		}
	}
	return client.Workspace{}, client.ErrWorkspaceNotFound
}

func (f *fakeClients) CreateWorkspace(_ context.Context, w client.Workspace) (client.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workspaces = append(f.workspaces, w)
	return w, nil
}

func (f *fakeClients) ExistsByName(_ context.Context, workspaceID uuid.UUID, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.WorkspaceID() == workspaceID && strings.EqualFold(c.Name(), name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClients) Create(_ context.Context, c client.Client) (client.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeClients) List(_ context.Context, params *client.FindParams) ([]client.Listed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := map[uuid.UUID]string{}
	for _, w := range f.workspaces {
		names[w.ID()] = w.Name()
	}
	var all []client.Listed
	for _, c := range f.clients {
		all = append(all, client.Listed{Client: c, WorkspaceName: names[c.WorkspaceID()]})
	}
	if params.Offset >= len(all) {
		return nil, nil
	}
	return all[params.Offset:min(params.Offset+params.Limit, len(all))], nil
}

func seedClient(f *fakeClients, tenantID uuid.UUID, workspace, name string) {
	w := client.HydrateWorkspace(uuid.New(), tenantID, workspace, time.Now())
	f.workspaces = append(f.workspaces, w)
	f.clients = append(f.clients, client.New(tenantID, w.ID(), client.Details{Name: name, TaxID: "123"}))
}

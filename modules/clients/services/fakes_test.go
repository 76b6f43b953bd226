package services

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
	"github.com/iota-uz/clientdesk/pkg/composables"
)

func tenantCtx() context.Context {
	return composables.WithTenantID(context.Background(), uuid.New())
}

type memAssignmentRepo struct {
	mu        sync.Mutex
	rows      map[string]map[string]assignment.Capabilities
	listCalls int
	upserts   int
	deletes   int

	upsertErr func(clientID string) error
	deleteErr func(clientID, userID string) error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{rows: map[string]map[string]assignment.Capabilities{}}
}

func (r *memAssignmentRepo) seed(state assignment.StateMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for clientID, users := range state {
		for userID := range users {
			if r.rows[clientID] == nil {
				r.rows[clientID] = map[string]assignment.Capabilities{}
			}
			r.rows[clientID][userID] = assignment.DefaultCapabilities()
		}
	}
}

func (r *memAssignmentRepo) enter() func() {
	n := r.inFlight.Add(1)
	for {
		cur := r.maxInFlight.Load()
		if n <= cur || r.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return func() { r.inFlight.Add(-1) }
}

func (r *memAssignmentRepo) ListPage(_ context.Context, clientIDs []string, limit, offset int) ([]assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++

	var all []assignment.Assignment
	for _, clientID := range clientIDs {
		for userID, caps := range r.rows[clientID] {
			all = append(all, assignment.Hydrate(clientID, userID, caps, time.Time{}))
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

func (r *memAssignmentRepo) Upsert(_ context.Context, clientID string, rows []assignment.Assignment) error {
	defer r.enter()()
	if r.upsertErr != nil {
		if err := r.upsertErr(clientID); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.rows[clientID] == nil {
		r.rows[clientID] = map[string]assignment.Capabilities{}
	}
	for _, row := range rows {
		r.rows[clientID][row.UserID()] = row.Capabilities()
	}
	return nil
}

func (r *memAssignmentRepo) Delete(_ context.Context, clientID, userID string) error {
	defer r.enter()()
	if r.deleteErr != nil {
		if err := r.deleteErr(clientID, userID); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	delete(r.rows[clientID], userID)
	return nil
}

func (r *memAssignmentRepo) state(clientIDs ...string) assignment.StateMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := assignment.StateMap{}
	for _, clientID := range clientIDs {
		set := assignment.IDSet{}
		for userID := range r.rows[clientID] {
			set.Add(userID)
		}
		out[clientID] = set
	}
	return out
}

type memClientRepo struct {
	mu         sync.Mutex
	workspaces []client.Workspace
	clients    []client.Client
	createErr  error
}

func (r *memClientRepo) FindWorkspaceByName(_ context.Context, name string) (client.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.workspaces {
		if strings.EqualFold(w.Name(), name) {
			return w, nil
		}
	}
	return client.Workspace{}, client.ErrWorkspaceNotFound
}

func (r *memClientRepo) CreateWorkspace(_ context.Context, w client.Workspace) (client.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaces = append(r.workspaces, w)
	return w, nil
}

func (r *memClientRepo) ExistsByName(_ context.Context, workspaceID uuid.UUID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.WorkspaceID() == workspaceID && strings.EqualFold(c.Name(), name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memClientRepo) Create(_ context.Context, c client.Client) (client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return client.Client{}, r.createErr
	}
	r.clients = append(r.clients, c)
	return c, nil
}

func (r *memClientRepo) List(_ context.Context, params *client.FindParams) ([]client.Listed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := map[uuid.UUID]string{}
	for _, w := range r.workspaces {
		names[w.ID()] = w.Name()
	}
	var all []client.Listed
	for _, c := range r.clients {
		all = append(all, client.Listed{Client: c, WorkspaceName: names[c.WorkspaceID()]})
	}
	if params.Offset >= len(all) {
		return nil, nil
	}
	return all[params.Offset:min(params.Offset+params.Limit, len(all))], nil
}

package assignment

import "sync"

// Matrix is an in-memory edit session over the assignment grid. Edits are
// applied to a working copy; Snapshot freezes the desired state for a save.
type Matrix struct {
	mu       sync.Mutex
	existing StateMap
	desired  StateMap
}

func NewMatrix(existing StateMap) *Matrix {
	m := &Matrix{}
	m.Reset(existing)
	return m
}

// Reset discards pending edits and rebases the session on existing.
func (m *Matrix) Reset(existing StateMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existing = existing.Clone()
	m.desired = existing.Clone()
}

func (m *Matrix) set(clientID string) IDSet {
	set, ok := m.desired[clientID]
	if !ok {
		set = IDSet{}
		m.desired[clientID] = set
	}
	return set
}

// Toggle flips the assignment of userID on clientID and reports the new value.
func (m *Matrix) Toggle(clientID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.set(clientID)
	if set.Has(userID) {
		set.Remove(userID)
		return false
	}
	set.Add(userID)
	return true
}

// Set replaces the users assigned to clientID.
func (m *Matrix) Set(clientID string, userIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.desired[clientID] = NewIDSet(userIDs...)
}

// GrantToAll assigns userID to every client in the session.
func (m *Matrix) GrantToAll(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for clientID := range m.desired {
		m.desired[clientID].Add(userID)
	}
}

// RevokeFromAll removes userID from every client in the session.
func (m *Matrix) RevokeFromAll(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, set := range m.desired {
		set.Remove(userID)
	}
}

func (m *Matrix) Has(clientID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desired.Get(clientID).Has(userID)
}

// Pending returns the plan that would bring the store to the edited state.
func (m *Matrix) Pending() []EntityDelta {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Plan(m.existing, m.desired)
}

func (m *Matrix) Dirty() bool { return len(m.Pending()) > 0 }

// Snapshot returns a copy of the desired state that later edits do not affect.
func (m *Matrix) Snapshot() StateMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desired.Clone()
}

package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrix_EditsProducePlan(t *testing.T) {
	m := NewMatrix(StateMap{
		"c1": NewIDSet("u1"),
		"c2": NewIDSet(),
	})
	require.False(t, m.Dirty())

	assert.True(t, m.Toggle("c2", "u2"))
	assert.False(t, m.Toggle("c1", "u1"))
	assert.True(t, m.Has("c2", "u2"))

	plan := m.Pending()
	require.Len(t, plan, 2)
	assert.Equal(t, EntityDelta{ClientID: "c1", Delta: Delta{ToRemove: []string{"u1"}}}, plan[0])
	assert.Equal(t, EntityDelta{ClientID: "c2", Delta: Delta{ToAdd: []string{"u2"}}}, plan[1])
}

func TestMatrix_GrantAndRevokeAll(t *testing.T) {
	m := NewMatrix(StateMap{"c1": NewIDSet(), "c2": NewIDSet("u1")})

	m.GrantToAll("u7")
	assert.True(t, m.Has("c1", "u7"))
	assert.True(t, m.Has("c2", "u7"))

	m.RevokeFromAll("u1")
	assert.False(t, m.Has("c2", "u1"))

	adds, removes := Totals(m.Pending())
	assert.Equal(t, 2, adds)
	assert.Equal(t, 1, removes)
}

func TestMatrix_SnapshotIsIsolated(t *testing.T) {
	m := NewMatrix(StateMap{"c1": NewIDSet()})
	m.Set("c1", "u1", "u2")

	snap := m.Snapshot()
	m.Toggle("c1", "u3")
	m.Set("c2", "u1")

	assert.Equal(t, []string{"u1", "u2"}, snap.Get("c1").Sorted())
	_, ok := snap["c2"]
	assert.False(t, ok)
}

func TestMatrix_ResetClearsPending(t *testing.T) {
	m := NewMatrix(StateMap{"c1": NewIDSet()})
	m.Toggle("c1", "u1")
	require.True(t, m.Dirty())

	m.Reset(m.Snapshot())
	assert.False(t, m.Dirty())
}

package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
)

var errBackend = errors.New("backend unavailable")

func TestBatchExecutor_AppliesPlan(t *testing.T) {
	repo := newMemAssignmentRepo()
	repo.seed(assignment.StateMap{"c1": assignment.NewIDSet("u1", "u2")})
	exec := NewBatchExecutor(repo, ExecutorOptions{})

	plan := assignment.Plan(
		repo.state("c1", "c2"),
		assignment.StateMap{"c1": assignment.NewIDSet("u2", "u3"), "c2": assignment.NewIDSet("u1", "u4")},
	)
	res, err := exec.Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, BatchResult{Added: 3, Removed: 1}, res)
	assert.Equal(t, 2, repo.upserts, "one upsert per client")
	assert.Equal(t, 1, repo.deletes, "one delete per pair")
	assert.Equal(t, []string{"u2", "u3"}, repo.state("c1").Get("c1").Sorted())
	assert.Equal(t, []string{"u1", "u4"}, repo.state("c2").Get("c2").Sorted())
}

func TestBatchExecutor_DuplicateKeyTolerance(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, false},
		{"wrapped unique violation", fmt.Errorf("upsert: %w", &pgconn.PgError{Code: "23505"}), false},
		{"domain duplicate", fmt.Errorf("%w: x", assignment.ErrDuplicate), false},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, true},
		{"transport error", errBackend, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemAssignmentRepo()
			repo.upsertErr = func(string) error { return tt.err }
			exec := NewBatchExecutor(repo, ExecutorOptions{})

			plan := []assignment.EntityDelta{{ClientID: "c1", Delta: assignment.Delta{ToAdd: []string{"u1"}}}}
			res, err := exec.Execute(context.Background(), plan)
			if tt.wantErr {
				require.ErrorIs(t, err, tt.err)
				assert.Equal(t, 1, res.Failed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, res.Duplicates)
			assert.Equal(t, 0, res.Failed)
		})
	}
}

func TestBatchExecutor_BestEffortOnFailure(t *testing.T) {
	repo := newMemAssignmentRepo()
	repo.seed(assignment.StateMap{"c1": assignment.NewIDSet("u1", "u2"), "c2": assignment.NewIDSet("u1")})
	repo.deleteErr = func(clientID, userID string) error {
		if clientID == "c1" && userID == "u1" {
			return errBackend
		}
		return nil
	}
	exec := NewBatchExecutor(repo, ExecutorOptions{})

	plan := []assignment.EntityDelta{
		{ClientID: "c1", Delta: assignment.Delta{ToAdd: []string{"u9"}, ToRemove: []string{"u1", "u2"}}},
		{ClientID: "c2", Delta: assignment.Delta{ToRemove: []string{"u1"}}},
	}
	res, err := exec.Execute(context.Background(), plan)

	require.ErrorIs(t, err, errBackend)
	assert.Equal(t, BatchResult{Added: 1, Removed: 2, Failed: 1}, res)
	assert.Equal(t, []string{"u1", "u9"}, repo.state("c1").Get("c1").Sorted())
	assert.Equal(t, 0, repo.state("c2").Get("c2").Len())
}

func TestBatchExecutor_BoundsConcurrency(t *testing.T) {
	repo := newMemAssignmentRepo()
	repo.delay = 5 * time.Millisecond
	exec := NewBatchExecutor(repo, ExecutorOptions{MaxInFlight: 3})

	var plan []assignment.EntityDelta
	for i := 0; i < 12; i++ {
		plan = append(plan, assignment.EntityDelta{
			ClientID: fmt.Sprintf("c%02d", i),
			Delta:    assignment.Delta{ToAdd: []string{"u1"}},
		})
	}
	res, err := exec.Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 12, res.Added)
	assert.LessOrEqual(t, repo.maxInFlight.Load(), int32(3))
	assert.Greater(t, repo.maxInFlight.Load(), int32(1))
}

func TestBatchExecutor_EmptyPlan(t *testing.T) {
	repo := newMemAssignmentRepo()
	res, err := NewBatchExecutor(repo, ExecutorOptions{}).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, res)
	assert.Equal(t, 0, repo.upserts+repo.deletes)
}

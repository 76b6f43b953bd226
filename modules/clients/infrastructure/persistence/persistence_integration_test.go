//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/clientdesk/modules/clients/domain/aggregates/assignment"
	"github.com/iota-uz/clientdesk/modules/clients/domain/entities/client"
	"github.com/iota-uz/clientdesk/pkg/composables"
)

func setupDB(t *testing.T) context.Context {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("CLIENTDESK_TEST_DSN"))
	if dsn == "" {
		t.Skip("CLIENTDESK_TEST_DSN is not set; skipping persistence integration test")
	}

	ctx := context.Background()
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = MigrateUp(ctx, db)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ctx = composables.WithPool(ctx, pool)
	return composables.WithTenantID(ctx, uuid.New())
}

func TestAssignmentRepository_UpsertListDelete(t *testing.T) {
	ctx := setupDB(t)
	repo := NewAssignmentRepository()

	require.NoError(t, repo.Upsert(ctx, "c1", []assignment.Assignment{
		assignment.New("c1", "u1"),
		assignment.New("c1", "u2"),
		assignment.New("c1", "u3"),
	}))
	require.NoError(t, repo.Upsert(ctx, "c2", []assignment.Assignment{assignment.New("c2", "u1")}))
	// repeating the upsert is a no-op
	require.NoError(t, repo.Upsert(ctx, "c1", []assignment.Assignment{assignment.New("c1", "u1")}))

	page, err := repo.ListPage(ctx, []string{"c1", "c2"}, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "u1", page[0].UserID())
	assert.True(t, page[0].Capabilities().CanView)
	assert.False(t, page[0].Capabilities().CanModerate)

	page, err = repo.ListPage(ctx, []string{"c1", "c2"}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c2", page[1].ClientID())

	require.NoError(t, repo.Delete(ctx, "c1", "u2"))
	require.NoError(t, repo.Delete(ctx, "c1", "missing"))

	page, err = repo.ListPage(ctx, []string{"c1"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestClientRepository_CreateAndList(t *testing.T) {
	ctx := setupDB(t)
	repo := NewClientRepository()
	tenant, err := composables.UseTenantID(ctx)
	require.NoError(t, err)

	_, err = repo.FindWorkspaceByName(ctx, "Main")
	require.ErrorIs(t, err, client.ErrWorkspaceNotFound)

	ws, err := repo.CreateWorkspace(ctx, client.NewWorkspace(tenant, "Main"))
	require.NoError(t, err)
	again, err := repo.CreateWorkspace(ctx, client.NewWorkspace(tenant, "main"))
	require.NoError(t, err)
	assert.Equal(t, ws.ID(), again.ID())

	found, err := repo.FindWorkspaceByName(ctx, "MAIN")
	require.NoError(t, err)
	assert.Equal(t, ws.ID(), found.ID())

	details := client.Details{
		Name:        "Acme",
		TaxID:       "123",
		Credentials: client.Credentials{Bank: client.Login{Login: "l", Password: "p"}},
	}
	_, err = repo.Create(ctx, client.New(tenant, ws.ID(), details))
	require.NoError(t, err)
	_, err = repo.Create(ctx, client.New(tenant, ws.ID(), details))
	require.ErrorIs(t, err, client.ErrDuplicateClient)

	exists, err := repo.ExistsByName(ctx, ws.ID(), "acme")
	require.NoError(t, err)
	assert.True(t, exists)

	listed, err := repo.List(ctx, &client.FindParams{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Main", listed[0].WorkspaceName)
	assert.Equal(t, "p", listed[0].Details().Credentials.Bank.Password)
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/iota-uz/clientdesk/pkg/composables"
	"github.com/iota-uz/clientdesk/pkg/configuration"
)

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func openSQL() (*sql.DB, error) {
	db, err := sql.Open("pgx", configuration.Use().Database.Opts)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

// tenantContext carries everything the repositories read from context.
func tenantContext(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) context.Context {
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithTenantID(ctx, tenantID)
	return composables.WithLogger(ctx, configuration.Use().Logger().WithField("component", "clients-data"))
}

func addTenantFlag(cmd *cobra.Command, target *uuid.UUID) {
	var tenant string
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant UUID (required)")
	_ = cmd.MarkFlagRequired("tenant")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseTenant(tenant)
		if err != nil {
			return err
		}
		*target = id
		return nil
	}
}

func parseTenant(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --tenant: %w", err))
	}
	if id == uuid.Nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("--tenant must not be the nil uuid"))
	}
	return id, nil
}

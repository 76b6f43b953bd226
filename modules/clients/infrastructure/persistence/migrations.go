package persistence

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

// Migrations returns a goose provider over the embedded clients schema.
func Migrations(db *sql.DB) (*goose.Provider, error) {
	sub, err := fs.Sub(schemaFiles, "schema")
	if err != nil {
		return nil, errors.Wrap(err, "schema fs")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return nil, errors.Wrap(err, "goose provider")
	}
	return p, nil
}

// MigrateUp applies every pending migration and returns the applied versions.
func MigrateUp(ctx context.Context, db *sql.DB) ([]int64, error) {
	p, err := Migrations(db)
	if err != nil {
		return nil, err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "migrate up")
	}
	versions := make([]int64, 0, len(results))
	for _, r := range results {
		versions = append(versions, r.Source.Version)
	}
	return versions, nil
}

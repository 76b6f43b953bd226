package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/clientdesk/modules/clients/infrastructure/persistence"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openSQL()
			if err != nil {
				return withCode(exitDB, err)
			}
			defer func() { _ = db.Close() }()

			applied, err := persistence.MigrateUp(cmd.Context(), db)
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			if applied == nil {
				applied = []int64{}
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"status": "ok", "applied": applied})
		},
	}
}

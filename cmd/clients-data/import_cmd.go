package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/clientdesk/modules/clients/infrastructure/persistence"
	"github.com/iota-uz/clientdesk/modules/clients/services"
	"github.com/iota-uz/clientdesk/pkg/configuration"
	"github.com/iota-uz/clientdesk/pkg/eventbus"
)

type importOptions struct {
	tenantID uuid.UUID
	input    string
	apply    bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import clients from a semicolon separated CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openInput(opts.input)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return withCode(exitDB, err)
			}
			defer pool.Close()

			ctx := tenantContext(cmd.Context(), pool, opts.tenantID)
			svc := services.NewImportService(
				persistence.NewClientRepository(),
				eventbus.NewEventPublisher(configuration.Use().Logger()),
			)
			return runImport(ctx, opts, svc, f, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "CSV file to import (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write clients to the DB (default is dry-run)")
	_ = cmd.MarkFlagRequired("input")
	addTenantFlag(cmd, &opts.tenantID)
	return cmd
}

type importSummary struct {
	Status string `json:"status"`
	services.ImportReport
}

// runImport exits with exitValidation when rows were rejected and with
// exitDBWrite when valid rows could not be stored.
func runImport(ctx context.Context, opts importOptions, svc *services.ImportService, in io.Reader, out io.Writer) error {
	report, err := svc.Import(ctx, in, !opts.apply)
	if err != nil {
		var parseErr *csv.ParseError
		if errors.Is(err, services.ErrEmptyImport) || errors.As(err, &parseErr) {
			return withCode(exitValidation, err)
		}
		return withCode(exitDB, err)
	}

	status := "dry_run"
	if opts.apply {
		status = "applied"
	}
	if err := writeJSONLine(out, importSummary{Status: status, ImportReport: report}); err != nil {
		return err
	}
	switch {
	case report.Failed > 0:
		return withCode(exitDBWrite, fmt.Errorf("%d of %d rows failed to import", report.Failed, report.Total))
	case report.Invalid > 0:
		return withCode(exitValidation, fmt.Errorf("%d of %d rows are invalid", report.Invalid, report.Total))
	}
	return nil
}

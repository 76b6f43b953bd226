package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/clientdesk/modules/clients/infrastructure/persistence"
	"github.com/iota-uz/clientdesk/modules/clients/services"
)

type exportOptions struct {
	tenantID uuid.UUID
	output   string
	format   string
}

func (o *exportOptions) validate() error {
	o.format = strings.ToLower(strings.TrimSpace(o.format))
	switch o.format {
	case "csv", "xlsx":
		return nil
	default:
		return withCode(exitUsage, fmt.Errorf("unsupported --format: %s (expected csv|xlsx)", o.format))
	}
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the clients of a tenant as CSV or Excel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			pool, err := connectDB(cmd.Context())
			if err != nil {
				return withCode(exitDB, err)
			}
			defer pool.Close()

			ctx := tenantContext(cmd.Context(), pool, opts.tenantID)
			svc := services.NewExportService(persistence.NewClientRepository())
			return runExport(ctx, opts, svc, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.output, "output", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&opts.format, "format", "csv", "Format: csv|xlsx")
	addTenantFlag(cmd, &opts.tenantID)
	return cmd
}

func runExport(ctx context.Context, opts exportOptions, svc *services.ExportService, out io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if opts.format == "xlsx" {
		data, err = svc.XLSX(ctx)
	} else {
		data, err = svc.CSV(ctx)
	}
	if err != nil {
		return withCode(exitDB, err)
	}
	return writeOutput(out, opts.output, data)
}

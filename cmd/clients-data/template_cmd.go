package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/clientdesk/modules/clients/services"
)

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty import file with the header row",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := services.NewImportService(nil, nil)
			return writeOutput(cmd.OutOrStdout(), output, svc.Template())
		},
	}
	cmd.Flags().StringVar(&output, "output", services.TemplateFileName, "Output file, '-' for stdout")
	return cmd
}

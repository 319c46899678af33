package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/lower/internal/envconfig"
	"github.com/born-ml/lower/lower"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lower",
		Short:         "Lower traced operator graphs into backend computations",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: envconfig.LogLevel()})
			slog.SetDefault(slog.New(handler))
		},
	}

	rootCmd.AddCommand(
		newCompileCmd(),
		newOpsCmd(),
		newEnvCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List operators with a lowering rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var data [][]string
			for _, op := range lower.ListSupportedOps() {
				data = append(data, []string{op.Name, op.Arity})
			}
			renderTable(cmd, []string{"OPERATOR", "INPUTS"}, data)
			return nil
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show environment configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars := envconfig.AsMap()
			names := make([]string, 0, len(vars))
			for name := range vars {
				names = append(names, name)
			}
			slices.Sort(names)

			var data [][]string
			for _, name := range names {
				v := vars[name]
				data = append(data, []string{v.Name, fmt.Sprint(v.Value), v.Description})
			}
			renderTable(cmd, []string{"NAME", "VALUE", "DESCRIPTION"}, data)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lower %s\n", version)
		},
	}
}

func renderTable(cmd *cobra.Command, header []string, data [][]string) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

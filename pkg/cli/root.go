// Package cli implements the genbi command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
)

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	rootCmd := newRootCmd(version)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(version string) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "genbi",
		Short:         "GenBI engine",
		Long:          "Backend for natural-language BI: data sources, queries and dashboards.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, version)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")

	rootCmd.AddCommand(
		newServeCmd(&configPath, version),
		newMigrateCmd(&configPath, version),
		newConfigCmd(&configPath, version),
		newVersionCmd(version),
	)
	return rootCmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "genbi version %s\n", version)
			return err
		},
	}
}

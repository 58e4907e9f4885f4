package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Operator tools for a nearby-smelt server and its data directory",
		SilenceUsage: true,
	}
	root.AddCommand(newWorldsCmd(), newFurnacesCmd(), newAuditCmd(), newDBCmd())
	return root
}

func newWorldsCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "worlds",
		Short: "List worlds with runtime data",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(filepath.Join(dataDir, "worlds"))
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			for _, e := range entries {
				if e.IsDir() {
					fmt.Fprintln(cmd.OutOrStdout(), e.Name())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	return cmd
}

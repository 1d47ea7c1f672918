package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/accord/internal/templates"
)

func newPlaceholdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "placeholders <file>...",
		Short: "List the distinct placeholders in template bodies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				body, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read template: %w", err)
				}

				names := templates.ExtractPlaceholders(string(body))
				if len(args) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", path)
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
			}
			return nil
		},
	}
}

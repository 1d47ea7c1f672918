package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/accord/internal/generation"
	"github.com/JaimeStill/accord/internal/merge"
	"github.com/JaimeStill/accord/internal/providers"
)

func newPreviewCmd(root *rootOptions) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "preview <provider-id>",
		Short: "Print the merged body for one provider without archiving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid provider id %q: %w", args[0], err)
			}

			p, err := merge.ParsePolicy(policy)
			if err != nil {
				return err
			}

			m, err := loadManifest(root.manifest)
			if err != nil {
				return err
			}

			items, err := m.Items([]uuid.UUID{id})
			if err != nil {
				return err
			}
			item := items[0]
			if item.Template == nil {
				return &generation.ValidationError{Err: generation.ErrMissingTemplate, Providers: []uuid.UUID{id}}
			}

			merger := merge.Merger{Schema: providers.DefaultSchema, Policy: p}
			res := merger.Merge(*item.Template, item.Provider, item.Bindings)

			fmt.Fprintln(cmd.OutOrStdout(), res.Body)
			for _, w := range res.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "unresolved", "blank", "unresolved placeholder policy: blank, keep, ignore")
	return cmd
}

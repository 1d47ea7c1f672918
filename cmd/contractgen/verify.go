package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/accord/internal/archive"
	"github.com/JaimeStill/accord/pkg/storage"
)

func newVerifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <contract-id> [version]",
		Short: "Recompute archived artifact digests",
		Long: `Compares the stored artifact digest against the hash recorded in its
snapshot. Without a version every archived version of the contract is checked.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contractID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid contract id %q: %w", args[0], err)
			}

			logger := root.logger(cmd)
			store, err := storage.NewFilesystem(root.out, logger)
			if err != nil {
				return err
			}
			arc := archive.New(store, logger)

			var snaps []archive.Snapshot
			if len(args) == 2 {
				snap, err := arc.Find(cmd.Context(), contractID, args[1])
				if err != nil {
					return err
				}
				snaps = append(snaps, *snap)
			} else {
				snaps, err = arc.Versions(cmd.Context(), contractID)
				if err != nil {
					return err
				}
			}

			if len(snaps) == 0 {
				return fmt.Errorf("%w: contract %s", archive.ErrNotFound, contractID)
			}

			mismatched := 0
			for _, snap := range snaps {
				ok, err := arc.Verify(cmd.Context(), snap)
				if err != nil {
					return err
				}
				status := "ok"
				if !ok {
					status = "MISMATCH"
					mismatched++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s:%s\t%s\n", snap.Version, snap.Algorithm, snap.Hash, status)
			}

			if mismatched > 0 {
				return fmt.Errorf("%w: %d of %d versions", archive.ErrIntegrityMismatch, mismatched, len(snaps))
			}
			return nil
		},
	}
}

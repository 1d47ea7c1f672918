package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/accord/internal/archive"
	"github.com/JaimeStill/accord/internal/generation"
	"github.com/JaimeStill/accord/internal/merge"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/pkg/storage"
)

type runOptions struct {
	providers      []string
	policy         string
	archiveTimeout time.Duration
	packagePrefix  string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate contracts for the selected providers",
		Long: `Merges each selected provider into its assigned template, archives every
artifact with its snapshot, and packages the successful artifacts into a zip.
Without --provider every provider in the manifest is selected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.providers, "provider", "p", nil, "provider ids to generate")
	cmd.Flags().StringVar(&opts.policy, "unresolved", "blank", "unresolved placeholder policy: blank, keep, ignore")
	cmd.Flags().DurationVar(&opts.archiveTimeout, "archive-timeout", 30*time.Second, "bound on each archive write")
	cmd.Flags().StringVar(&opts.packagePrefix, "package-prefix", "packages", "storage prefix for run packages")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	logger := root.logger(cmd)

	policy, err := merge.ParsePolicy(opts.policy)
	if err != nil {
		return err
	}

	ids, err := parseIDs(opts.providers)
	if err != nil {
		return err
	}

	m, err := loadManifest(root.manifest)
	if err != nil {
		return err
	}

	items, err := m.Items(ids)
	if err != nil {
		return err
	}

	store, err := storage.NewFilesystem(root.out, logger)
	if err != nil {
		return err
	}

	orch := &generation.Orchestrator{
		Merger:         merge.Merger{Schema: providers.DefaultSchema, Policy: policy},
		Archive:        archive.New(store, logger),
		Storage:        store,
		Reporter:       generation.NewLogReporter(logger),
		Logger:         logger,
		ArchiveTimeout: opts.archiveTimeout,
		PackagePrefix:  opts.packagePrefix,
	}

	summary, err := orch.Execute(cmd.Context(), generation.NewRun(), items)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d contracts failed", summary.Failed, summary.Total)
	}
	return nil
}

func parseIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid provider id %q: %w", v, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

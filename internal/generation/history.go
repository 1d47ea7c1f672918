package generation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/pagination"
	"github.com/JaimeStill/accord/pkg/query"
	"github.com/JaimeStill/accord/pkg/repository"
)

// RunRecord is the persisted accounting of a finished run.
type RunRecord struct {
	ID             uuid.UUID `json:"id"`
	Status         Status    `json:"status"`
	Total          int       `json:"total"`
	Succeeded      int       `json:"succeeded"`
	PartialSuccess int       `json:"partial_success"`
	Failed         int       `json:"failed"`
	Unprocessed    int       `json:"unprocessed"`
	PackageKey     *string   `json:"package_key,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// History persists finished runs and their outcomes.
type History interface {
	Record(ctx context.Context, summary Summary) error
	List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[RunRecord], error)
}

var runProjection = query.
	NewProjectionMap("public", "generation_runs", "r").
	Project("id", "ID").
	Project("status", "Status").
	Project("total", "Total").
	Project("succeeded", "Succeeded").
	Project("partial_success", "PartialSuccess").
	Project("failed", "Failed").
	Project("unprocessed", "Unprocessed").
	Project("package_key", "PackageKey").
	Project("started_at", "StartedAt").
	Project("finished_at", "FinishedAt")

var runDefaultSort = query.SortField{Field: "StartedAt", Descending: true}

func scanRunRecord(s repository.Scanner) (RunRecord, error) {
	var r RunRecord
	err := s.Scan(
		&r.ID, &r.Status, &r.Total, &r.Succeeded, &r.PartialSuccess,
		&r.Failed, &r.Unprocessed, &r.PackageKey, &r.StartedAt, &r.FinishedAt,
	)
	return r, err
}

type history struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHistory creates a Postgres-backed run history.
func NewHistory(db *sql.DB, logger *slog.Logger, pagination pagination.Config) History {
	return &history{
		db:         db,
		logger:     logger.With("system", "generation-history"),
		pagination: pagination,
	}
}

const insertRun = `
	INSERT INTO generation_runs(
		id, status, total, succeeded, partial_success, failed,
		unprocessed, package_key, started_at, finished_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertOutcome = `
	INSERT INTO generation_outcomes(
		run_id, position, provider_id, template_id, status, contract_id,
		version, hash, warnings, error, recorded_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (h *history) Record(ctx context.Context, s Summary) error {
	var packageKey *string
	if s.Package != nil {
		packageKey = &s.Package.Key
	}

	_, err := repository.WithTx(ctx, h.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, insertRun,
			s.RunID, s.Status, s.Total, s.Succeeded, s.PartialSuccess, s.Failed,
			s.Unprocessed, packageKey, s.StartedAt, s.FinishedAt,
		); err != nil {
			return struct{}{}, fmt.Errorf("insert run: %w", err)
		}

		for i, o := range s.Outcomes {
			warnings, err := json.Marshal(o.Warnings)
			if err != nil {
				return struct{}{}, fmt.Errorf("encode warnings: %w", err)
			}

			var errText *string
			if o.Error != "" {
				errText = &o.Error
			}
			var version, hash *string
			if o.Version != "" {
				version, hash = &o.Version, &o.Hash
			}

			if _, err := tx.ExecContext(ctx, insertOutcome,
				s.RunID, i, o.ProviderID, o.TemplateID, o.Status, o.ContractID,
				version, hash, warnings, errText, o.Timestamp,
			); err != nil {
				return struct{}{}, fmt.Errorf("insert outcome %d: %w", i, err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", s.RunID, err)
	}

	h.logger.Info("run recorded", "run_id", s.RunID, "outcomes", len(s.Outcomes))
	return nil
}

func (h *history) List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[RunRecord], error) {
	page.Normalize(h.pagination)

	qb := query.NewBuilder(runProjection, runDefaultSort).OrderBy(page.Sort)

	result, err := repository.QueryPage(ctx, h.db, qb, page, scanRunRecord)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return result, nil
}

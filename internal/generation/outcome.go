package generation

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/merge"
	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/internal/templates"
)

// OutcomeStatus classifies one generated item.
type OutcomeStatus string

const (
	OutcomeSuccess        OutcomeStatus = "SUCCESS"
	OutcomePartialSuccess OutcomeStatus = "PARTIAL_SUCCESS"
	OutcomeFailed         OutcomeStatus = "FAILED"
)

// Item is one (provider, template) pair to generate. A nil Template marks a
// provider with no assigned template and rejects the run.
type Item struct {
	Provider providers.Record
	Template *templates.Template
	Mappings []templates.Mapping
	Bindings merge.Bindings
}

// Outcome is the immutable result of one item.
type Outcome struct {
	ProviderID   uuid.UUID     `json:"provider_id"`
	ProviderName string        `json:"provider_name"`
	TemplateID   uuid.UUID     `json:"template_id"`
	TemplateName string        `json:"template_name"`
	Status       OutcomeStatus `json:"status"`
	Filename     string        `json:"filename,omitempty"`
	ContentType  string        `json:"content_type,omitempty"`
	Artifact     []byte        `json:"-"`
	ContractID   *uuid.UUID    `json:"contract_id,omitempty"`
	Version      string        `json:"version,omitempty"`
	Hash         string        `json:"hash,omitempty"`
	Ref          string        `json:"ref,omitempty"`
	Warnings     []string      `json:"warnings"`
	Error        string        `json:"error,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Summary is the final accounting of a run.
type Summary struct {
	RunID          uuid.UUID `json:"run_id"`
	Status         Status    `json:"status"`
	Total          int       `json:"total"`
	Succeeded      int       `json:"succeeded"`
	PartialSuccess int       `json:"partial_success"`
	Failed         int       `json:"failed"`
	Unprocessed    int       `json:"unprocessed"`
	Outcomes       []Outcome `json:"outcomes"`
	Package        *Package  `json:"package,omitempty"`
	PackageError   string    `json:"package_error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Package is the stored zip of a run's generated artifacts.
type Package struct {
	Key   string   `json:"key"`
	Ref   string   `json:"ref"`
	Files []string `json:"files"`
	Size  int64    `json:"size"`
}

func summarize(run *Run, status Status, total int, outcomes []Outcome, started time.Time) *Summary {
	s := &Summary{
		RunID:      run.ID(),
		Status:     status,
		Total:      total,
		Outcomes:   outcomes,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSuccess:
			s.Succeeded++
		case OutcomePartialSuccess:
			s.PartialSuccess++
		case OutcomeFailed:
			s.Failed++
		}
	}
	s.Unprocessed = total - len(outcomes)
	return s
}

// release drops encoded artifacts once they are packaged and archived.
func release(outcomes []Outcome) {
	for i := range outcomes {
		outcomes[i].Artifact = nil
	}
}

// RetryItems returns the items whose outcome in summary was FAILED,
// in their original order.
func RetryItems(summary *Summary, items []Item) []Item {
	failed := make(map[[2]uuid.UUID]bool)
	for _, o := range summary.Outcomes {
		if o.Status == OutcomeFailed {
			failed[[2]uuid.UUID{o.ProviderID, o.TemplateID}] = true
		}
	}

	var retry []Item
	for _, it := range items {
		if it.Template == nil {
			continue
		}
		if failed[[2]uuid.UUID{it.Provider.ID, it.Template.ID}] {
			retry = append(retry, it)
		}
	}
	return retry
}

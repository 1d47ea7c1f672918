package generation

import (
	"context"
	"log/slog"

	"github.com/JaimeStill/accord/pkg/events"
)

// Event topics published for runs.
const (
	TopicProgress = "generation.progress"
	TopicComplete = "generation.complete"
)

// Reporter receives run notifications from the orchestrator loop.
// Implementations must not block for long; they run between items.
type Reporter interface {
	Progress(ctx context.Context, state State)
	Complete(ctx context.Context, summary Summary)
}

// Reporters fans notifications out to every reporter in order.
type Reporters []Reporter

func (rs Reporters) Progress(ctx context.Context, state State) {
	for _, r := range rs {
		r.Progress(ctx, state)
	}
}

func (rs Reporters) Complete(ctx context.Context, summary Summary) {
	for _, r := range rs {
		r.Complete(ctx, summary)
	}
}

type logReporter struct {
	logger *slog.Logger
}

// NewLogReporter logs progress at Debug and completion at Info.
func NewLogReporter(logger *slog.Logger) Reporter {
	return logReporter{logger: logger}
}

func (l logReporter) Progress(ctx context.Context, s State) {
	l.logger.Debug("run progress",
		"run_id", s.ID,
		"completed", s.Completed,
		"total", s.Total,
		"percent", s.Percent,
	)
}

func (l logReporter) Complete(ctx context.Context, s Summary) {
	l.logger.Info("run complete",
		"run_id", s.RunID,
		"status", s.Status,
		"succeeded", s.Succeeded,
		"partial_success", s.PartialSuccess,
		"failed", s.Failed,
		"unprocessed", s.Unprocessed,
	)
}

// ProgressEvent is the payload published on TopicProgress.
type ProgressEvent struct {
	RunID     string `json:"run_id"`
	Status    Status `json:"status"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
	Operation string `json:"operation"`
}

type eventReporter struct {
	events events.System
	logger *slog.Logger
}

// NewEventReporter publishes progress and completion through events.
// Publish failures are logged and never affect the run.
func NewEventReporter(sys events.System, logger *slog.Logger) Reporter {
	return eventReporter{events: sys, logger: logger}
}

func (e eventReporter) Progress(ctx context.Context, s State) {
	e.publish(ctx, TopicProgress, ProgressEvent{
		RunID:     s.ID.String(),
		Status:    s.Status,
		Completed: s.Completed,
		Total:     s.Total,
		Percent:   s.Percent,
		Operation: s.Operation,
	})
}

func (e eventReporter) Complete(ctx context.Context, s Summary) {
	e.publish(ctx, TopicComplete, s)
}

func (e eventReporter) publish(ctx context.Context, topic string, payload any) {
	if err := e.events.Publish(context.WithoutCancel(ctx), topic, payload); err != nil {
		e.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}

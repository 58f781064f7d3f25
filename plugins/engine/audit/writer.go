package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rom8726/resflow"
)

var _ Writer = (*LogWriter)(nil)

// LogWriter emits audit entries as structured log events.
type LogWriter struct {
	logger zerolog.Logger
}

func NewLogWriter(logger zerolog.Logger) *LogWriter {
	return &LogWriter{logger: logger.With().Str("component", "audit").Logger()}
}

func (w *LogWriter) Write(_ context.Context, entry *AuditLogEntry) error {
	event := w.logger.Info().
		Time("at", entry.Timestamp).
		Str("event_type", entry.EventType).
		Str(resflow.KeyResourceID, entry.ResourceID).
		Str(resflow.KeyWorkflowID, entry.WorkflowID).
		Str(resflow.KeyWorkflowType, entry.WorkflowType)

	if entry.StepID != "" {
		event = event.Str(resflow.KeyStepID, entry.StepID).Str(resflow.KeyStepName, entry.StepName)
	}
	if entry.Actor != "" {
		event = event.Str("actor", entry.Actor)
	}
	if entry.Status != "" {
		event = event.Str(resflow.KeyStatus, entry.Status)
	}
	if entry.Error != "" {
		event = event.Str("error", entry.Error)
	}
	if len(entry.Metadata) > 0 {
		event = event.Interface("metadata", entry.Metadata)
	}

	event.Msg("audit")

	return nil
}

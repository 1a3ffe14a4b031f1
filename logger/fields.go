package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across vgate.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldWorkflowID = "workflow_id"
	FieldDatasetID  = "dataset_hash"

	// Components
	FieldComponent   = "component"
	FieldStage       = "stage"
	FieldParticipant = "participant"
	FieldPersona     = "persona"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError     = "error"
	FieldErrorType = "error_type"

	// Verifier process
	FieldCommand  = "command"
	FieldExitCode = "exit_code"
	FieldWorkdir  = "workdir"

	// Workflow
	FieldState      = "state"
	FieldDecision   = "decision"
	FieldConfidence = "confidence"
	FieldThreshold  = "threshold"
	FieldCount      = "count"
)

type contextKey string

const (
	workflowIDKey contextKey = "logger_workflow_id"
	componentKey  contextKey = "logger_component"
)

// WithWorkflowID adds a workflow ID to the context for logging
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, workflowIDKey, workflowID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WorkflowIDFromContext returns the workflow ID stored by WithWorkflowID, if any.
func WorkflowIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(workflowIDKey).(string)
	return id
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if id := WorkflowIDFromContext(ctx); id != "" {
		fields = append(fields, FieldWorkflowID, id)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext returns base enriched with the fields carried by ctx.
// A nil base falls back to the global Logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}

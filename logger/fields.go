package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
const (
	// Identity and context
	FieldJobID     = "job_id"
	FieldJobName   = "job_name"
	FieldTenantID  = "tenant_id"
	FieldOrgID     = "org_id"
	FieldRequestID = "request_id"

	// Components
	FieldComponent = "component"

	// Events and triggers
	FieldEvent    = "event"
	FieldDocID    = "doc_id"
	FieldJRN      = "jrn"
	FieldVerb     = "verb"
	FieldDelivery = "delivery_id"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and status
	FieldCount  = "count"
	FieldStatus = "status"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	scheduler := jobs.NewScheduler(store, jobs.Options{
//	    Logger: logger.ComponentLogger("jobs.scheduler"),
//	})
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
//	jobLogger := logger.ChildLogger(baseLogger, logger.FieldJobID, exec.ID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return OrDefault(parent).With(keysAndValues...)
}

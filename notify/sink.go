package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Finn-coder2026/jolli-demo-sub011/logger"
)

// LogSink writes notifications to a zap logger
type LogSink struct {
	Logger *zap.SugaredLogger
}

// Send implements Sink
func (s LogSink) Send(_ context.Context, n Notification) error {
	args := append(n.Tenant.LogFields(),
		logger.FieldEvent, n.Event.Type,
		logger.FieldJobID, n.Event.JobID,
		logger.FieldJobName, n.Event.Name,
	)
	if n.Event.Error != "" {
		args = append(args, logger.FieldError, n.Event.Error)
	}
	logger.OrDefault(s.Logger).Infow("Job notification", args...)
	return nil
}

// MemorySink keeps every notification it receives
type MemorySink struct {
	mu   sync.Mutex
	sent []Notification
}

// Send implements Sink
func (s *MemorySink) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

// Notifications returns a copy of what was received
func (s *MemorySink) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}

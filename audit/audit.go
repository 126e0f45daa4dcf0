package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types written to the audit trail
const (
	EventSessionCreated   = "session.created"
	EventSessionRefreshed = "session.refreshed"
	EventSessionRevoked   = "session.revoked"
	EventSessionDenied    = "session.denied"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	UserEmail  string    `json:"user_email,omitempty"`
	TenantID   string    `json:"tenant_id,omitempty"`
	TenantSlug string    `json:"tenant_slug,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Sink receives audit events. Recording must not fail the operation being audited.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// LogSink writes events as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	s.logger.Info().
		Str("event_id", event.ID).
		Str("event", event.Type).
		Str("user_id", event.UserID).
		Str("user_email", event.UserEmail).
		Str("tenant_id", event.TenantID).
		Str("tenant_slug", event.TenantSlug).
		Str("reason", event.Reason).
		Time("at", event.At).
		Msg("audit")
}

// MemorySink keeps events in memory, for tests and admin inspection.
type MemorySink struct {
	events []Event
	lock   sync.RWMutex
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(_ context.Context, event Event) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	s.events = append(s.events, event)
}

func (s *MemorySink) Events() []Event {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]Event(nil), s.events...)
}

// Types returns the recorded event types in order.
func (s *MemorySink) Types() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.Type)
	}
	return types
}

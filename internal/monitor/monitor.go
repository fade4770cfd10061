// Package monitor implements the best-effort MonitoringService capability
// spec.md §6 names: sendUpdate(sessionId?, ExecutionRecord). Failures to
// send must never affect execution outcome (spec.md §7).
package monitor

import (
	"github.com/rs/zerolog/log"

	"github.com/flowcore/engine/internal/executor"
)

// Service is the abstract capability the Level Scheduler and Execution
// Driver depend on.
type Service interface {
	SendUpdate(sessionID string, record *executor.Record)
}

// ConsoleService logs every update at debug level; always-on, paired
// with an optional Hub the way mbflow layers a console logger alongside
// its websocket/ClickHouse observers.
type ConsoleService struct{}

// NewConsoleService builds a ConsoleService.
func NewConsoleService() *ConsoleService { return &ConsoleService{} }

// SendUpdate implements Service.
func (c *ConsoleService) SendUpdate(sessionID string, record *executor.Record) {
	log.Debug().
		Str("execution_id", record.ID).
		Str("workflow_id", record.WorkflowID).
		Str("status", string(record.Status)).
		Str("session_id", sessionID).
		Int("node_count", len(record.NodeExecutions)).
		Msg("execution update")
}

// Multi fans one update out to several services, swallowing nothing from
// the caller's perspective — each sub-service is itself best-effort.
type Multi struct {
	Services []Service
}

// SendUpdate implements Service.
func (m *Multi) SendUpdate(sessionID string, record *executor.Record) {
	for _, svc := range m.Services {
		svc.SendUpdate(sessionID, record)
	}
}

// EventSink is the abstract batched event log a deployment may plug in
// (ClickHouse, a data warehouse, a queue) without this module taking a
// direct dependency on any concrete driver — no such driver is in the
// retrieval pack, so the core only depends on this interface.
type EventSink interface {
	WriteEvent(sessionID string, record *executor.Record) error
}

// SinkService adapts an EventSink into a Service. A write failure is
// logged, never propagated — sendUpdate is best-effort per spec.md §7.
type SinkService struct {
	Sink EventSink
}

// NewSinkService wraps sink as a Service.
func NewSinkService(sink EventSink) *SinkService { return &SinkService{Sink: sink} }

// SendUpdate implements Service.
func (s *SinkService) SendUpdate(sessionID string, record *executor.Record) {
	if s.Sink == nil {
		return
	}
	if err := s.Sink.WriteEvent(sessionID, record); err != nil {
		log.Warn().Str("execution_id", record.ID).Err(err).Msg("event sink write failed")
	}
}

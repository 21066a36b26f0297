// Package events carries the structured event stream the orchestrator emits:
// run started, per-device transitions, per-device outcomes, run completed.
// The core emits events, not formatted text; sinks own presentation.
package events

import (
	"log"

	"github.com/netops-tools/aclpush/internal/domain"
)

// Sink receives rollout lifecycle events. Implementations must be safe for
// concurrent use; device workflows emit from their own goroutines.
type Sink interface {
	Emit(event domain.Event)
}

// LogSink writes events to the standard logger.
type LogSink struct{}

func (LogSink) Emit(e domain.Event) {
	switch {
	case e.DeviceID == "":
		log.Printf("[run %s] %s %s", e.RunID, e.Type, e.Detail)
	case e.State != "":
		log.Printf("[run %s] %s: %s %s", e.RunID, e.DeviceID, e.State, e.Detail)
	default:
		log.Printf("[run %s] %s: %s %s", e.RunID, e.DeviceID, e.Type, e.Detail)
	}
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(domain.Event) {}

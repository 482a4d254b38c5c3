package amp

import (
	"time"

	"github.com/google/uuid"
)

// Direction classifies a MonitorEvent for display purposes (see the
// broker and tui packages).
type Direction int

const (
	DirCallIssued Direction = iota
	DirCommandDispatched
	DirAnswerSent
	DirAnswerReceived
	DirErrorSent
	DirErrorReceived
	DirConnectionLost
)

func (d Direction) String() string {
	switch d {
	case DirCallIssued:
		return "call"
	case DirCommandDispatched:
		return "dispatch"
	case DirAnswerSent:
		return "answer-sent"
	case DirAnswerReceived:
		return "answer-recv"
	case DirErrorSent:
		return "error-sent"
	case DirErrorReceived:
		return "error-recv"
	case DirConnectionLost:
		return "closed"
	}
	return "unknown"
}

// MonitorEvent is an observability record published by an Engine for each
// notable protocol event. It is purely descriptive: nothing in the core
// engine depends on anything observing it. See broker.Broker and the tui
// package for consumers.
type MonitorEvent struct {
	EngineID uuid.UUID
	At       time.Time
	Tag      uint32
	Command  string
	Dir      Direction
	Fields   map[string]any // decoded args/response, for display
	Err      string
	Duration time.Duration
}

// emit publishes ev to the engine's configured sink, if any. Never blocks
// the caller indefinitely: the sink is expected to be non-blocking (see
// broker.Broker.Publish).
func (e *Engine) emit(ev MonitorEvent) {
	if e.onEvent == nil {
		return
	}
	ev.EngineID = e.id
	ev.At = time.Now()
	e.onEvent(ev)
}

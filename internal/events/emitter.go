package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Subscriber receives emitted events. Handlers must be fast; slow
// consumers should buffer internally (the websocket hub does).
type Subscriber func(Event)

// Emitter handles event emission and fan-out. Sequence numbers are
// assigned atomically at emission time, so the total order of events is
// independent of wall-clock skew across workers.
type Emitter struct {
	log zerolog.Logger
	seq atomic.Uint64

	mu   sync.RWMutex
	subs []Subscriber
}

// NewEmitter creates a new event emitter
func NewEmitter(log zerolog.Logger) *Emitter {
	return &Emitter{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers a subscriber for all future events
func (e *Emitter) Subscribe(sub Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, sub)
}

// Emit emits an event to the log and all subscribers
func (e *Emitter) Emit(eventType EventType, module string, data map[string]interface{}) Event {
	return e.EmitForCampaign(eventType, module, "", data)
}

// EmitForCampaign emits an event carrying a campaign id
func (e *Emitter) EmitForCampaign(eventType EventType, module, campaignID string, data map[string]interface{}) Event {
	event := Event{
		ID:         uuid.New().String(),
		Sequence:   e.seq.Add(1),
		Type:       eventType,
		CampaignID: campaignID,
		Timestamp:  time.Now(),
		Data:       data,
		Module:     module,
	}

	// Log event
	eventJSON, _ := json.Marshal(event)
	e.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		Uint64("seq", event.Sequence).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	e.mu.RLock()
	subs := e.subs
	e.mu.RUnlock()

	for _, sub := range subs {
		sub(event)
	}

	return event
}

// EmitError emits an error event
func (e *Emitter) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	e.Emit(ErrorOccurred, module, data)
}

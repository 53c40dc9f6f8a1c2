// Package events fans out capture job outcomes to in-process subscribers.
package events

import (
	"sync"

	"camserver/internal/logger"
	"camserver/internal/model"
)

// JobEvent is published once for every finished capture job.
type JobEvent struct {
	SweepID  string         `json:"sweep_id"`
	ID       string         `json:"id"`
	Sequence int            `json:"sequence"`
	Focus    *int           `json:"focus,omitempty"`
	State    model.JobState `json:"state"`
	Error    string         `json:"error,omitempty"`
	// Sharpness is set for successful captures when focus scoring is enabled.
	Sharpness *float64 `json:"sharpness,omitempty"`
}

// NewJobEvent builds the event for a record that reached a terminal state.
func NewJobEvent(meta *model.ImageMeta) JobEvent {
	ev := JobEvent{
		SweepID:   meta.SweepID,
		ID:        meta.ID,
		Sequence:  meta.Sequence,
		Focus:     meta.Focus,
		State:     meta.State(),
		Sharpness: meta.Sharpness,
	}
	if meta.Error != nil {
		ev.Error = *meta.Error
	}
	return ev
}

// Bus delivers events to subscribers without ever blocking the publisher.
// Events are dropped for subscribers whose buffer is full.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan JobEvent
	nextID int
	closed bool
	logger *logger.Logger
}

func NewBus(logger *logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan JobEvent),
		logger: logger,
	}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan JobEvent, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan JobEvent, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish hands ev to every subscriber that has room for it.
func (b *Bus) Publish(ev JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warning("Event for %s dropped: subscriber too slow", ev.ID)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

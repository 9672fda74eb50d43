package store

import (
	"log/slog"

	"github.com/tarsy-labs/deepresearch/pkg/model"
)

// subscriber is one live event consumer. ch is closed by the store, never by
// the consumer, so the consumer can range over it until either the session
// ends or it is disconnected for falling behind.
type subscriber struct {
	ch     chan model.Event
	closed bool
}

// Subscription is handed back to callers of Subscribe. Events yields the
// backlog followed by every live event, in order, until the session reaches
// a terminal status or Unsubscribe is called. A subscription opened after
// the session is already terminal receives the connected event and the
// backlog, and its channel then stays open until Unsubscribe.
type Subscription struct {
	Events <-chan model.Event
	cancel func()
}

// Unsubscribe detaches the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.cancel()
}

// Subscribe attaches a new subscriber to sessionID. It delivers the
// "connected" event, then every event already logged, then registers the
// subscriber for everything EmitEvent appends afterwards. Registration and
// backlog delivery happen under the session's single lock so no live event
// can be interleaved with, or duplicate, the backlog.
func (s *Store) Subscribe(sessionID string) (*Subscription, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{ch: make(chan model.Event, s.bufferSize)}

	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subs[id] = sub

	sub.ch <- model.Event{Type: model.EventConnected, Data: model.PayloadConnected{SessionID: e.session.ID}}
backlog:
	for _, ev := range e.session.Events {
		select {
		case sub.ch <- ev:
		default:
			// Buffer too small to hold the existing backlog: disconnect
			// rather than silently truncate it.
			sub.closed = true
			close(sub.ch)
			delete(e.subs, id)
			break backlog
		}
	}
	e.mu.Unlock()

	unsub := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if existing, ok := e.subs[id]; ok && !existing.closed {
			existing.closed = true
			close(existing.ch)
			delete(e.subs, id)
		}
	}

	return &Subscription{Events: sub.ch, cancel: unsub}, nil
}

// publish fans an event out to every live subscriber of e. Caller must hold
// e.mu. A subscriber whose channel would block is disconnected immediately
// with a best-effort overflow notice: silently dropping would leave a
// client showing a tool call stuck in "executing" forever with no signal
// anything was lost.
func (e *entry) publish(ev model.Event) {
	for id, sub := range e.subs {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			overflow := model.Event{
				Type: model.EventError,
				Data: model.PayloadError{
					Source: "system",
					Error:  "subscriber overflow: disconnected for falling behind",
				},
			}
			select {
			case sub.ch <- overflow:
			default:
			}
			sub.closed = true
			close(sub.ch)
			delete(e.subs, id)
			slog.Warn("subscriber disconnected on overflow", "session_id", e.session.ID, "subscriber_id", id)
		}
	}
	// A terminal session_status_change is the last event a live subscriber
	// receives: its channel is closed so the stream ends with the session.
	if p, ok := ev.Data.(model.PayloadSessionStatusChange); ok && p.Status.Terminal() {
		for id, sub := range e.subs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
			delete(e.subs, id)
		}
	}
}

// SPDX-License-Identifier: MPL-2.0

// Package events fans module notifications out to interested observers.
//
// Events are CloudEvents. A Bus delivers every event synchronously, in
// registration order, to the observers subscribed to its type.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// ErrDuplicateObserver is returned when an observer ID is registered twice.
var ErrDuplicateObserver = errors.New("observer already registered")

type (
	// Observer receives events from a Bus.
	Observer interface {
		OnEvent(ctx context.Context, event cloudevents.Event) error
		ObserverID() string
	}

	// ObserverInfo describes a registered observer.
	ObserverInfo struct {
		ID           string    `json:"id"`
		EventTypes   []string  `json:"eventTypes"`
		RegisteredAt time.Time `json:"registeredAt"`
	}

	// Bus is the Subject that modules publish to.
	Bus struct {
		mu        sync.RWMutex
		observers []registration
		logger    *slog.Logger
	}

	registration struct {
		observer Observer
		info     ObserverInfo
	}

	// FunctionalObserver adapts a function to the Observer interface.
	FunctionalObserver struct {
		id      string
		handler func(ctx context.Context, event cloudevents.Event) error
	}
)

// NewBus returns an empty bus. A nil logger means slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// NewFunctionalObserver wraps handler as an Observer named id.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) *FunctionalObserver {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent implements Observer.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements Observer.
func (f *FunctionalObserver) ObserverID() string { return f.id }

// NewEvent builds a CloudEvent with a time-ordered ID.
func NewEvent(eventType, source string, data any) (cloudevents.Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	event := cloudevents.NewEvent()
	event.SetID(id.String())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	if data != nil {
		if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
			return event, fmt.Errorf("encode %s event: %w", eventType, err)
		}
	}
	return event, nil
}

// RegisterObserver subscribes o to eventTypes, or to every event when
// none are given.
func (b *Bus) RegisterObserver(o Observer, eventTypes ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.ContainsFunc(b.observers, func(r registration) bool { return r.info.ID == o.ObserverID() }) {
		return fmt.Errorf("%w: %s", ErrDuplicateObserver, o.ObserverID())
	}
	b.observers = append(b.observers, registration{
		observer: o,
		info: ObserverInfo{
			ID:           o.ObserverID(),
			EventTypes:   slices.Clone(eventTypes),
			RegisteredAt: time.Now(),
		},
	})
	return nil
}

// UnregisterObserver removes o. Unknown observers are ignored.
func (b *Bus) UnregisterObserver(o Observer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = slices.DeleteFunc(b.observers, func(r registration) bool {
		return r.info.ID == o.ObserverID()
	})
	return nil
}

// Observers lists the registered observers.
func (b *Bus) Observers() []ObserverInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ObserverInfo, 0, len(b.observers))
	for _, r := range b.observers {
		out = append(out, r.info)
	}
	return out
}

// NotifyObservers validates event and delivers it. Observer failures are
// logged and joined into the returned error; they never stop delivery to
// the remaining observers.
func (b *Bus) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	b.mu.RLock()
	targets := make([]Observer, 0, len(b.observers))
	for _, r := range b.observers {
		if len(r.info.EventTypes) == 0 || slices.Contains(r.info.EventTypes, event.Type()) {
			targets = append(targets, r.observer)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, o := range targets {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := o.OnEvent(ctx, event); err != nil {
			b.logger.Warn("observer failed", "observer", o.ObserverID(), "type", event.Type(), "error", err)
			errs = append(errs, fmt.Errorf("observer %s: %w", o.ObserverID(), err))
		}
	}
	return errors.Join(errs...)
}

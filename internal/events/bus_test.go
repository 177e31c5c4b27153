// SPDX-License-Identifier: MPL-2.0

package events

import (
	"context"
	"errors"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collector(id string, into *[]string) *FunctionalObserver {
	return NewFunctionalObserver(id, func(_ context.Context, event cloudevents.Event) error {
		*into = append(*into, id+":"+event.Type())
		return nil
	})
}

func TestBusDeliversByType(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var got []string
	require.NoError(t, bus.RegisterObserver(collector("all", &got)))
	require.NoError(t, bus.RegisterObserver(collector("files", &got), "files"))

	for _, typ := range []string{"files", "versions"} {
		event, err := NewEvent(typ, "test", map[string]string{"k": "v"})
		require.NoError(t, err)
		require.NoError(t, bus.NotifyObservers(context.Background(), event))
	}

	assert.Equal(t, []string{"all:files", "files:files", "all:versions"}, got)
}

func TestBusRejectsDuplicateObserver(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var got []string
	require.NoError(t, bus.RegisterObserver(collector("a", &got)))
	err := bus.RegisterObserver(collector("a", &got))
	require.ErrorIs(t, err, ErrDuplicateObserver)
	assert.Len(t, bus.Observers(), 1)
}

func TestBusUnregister(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var got []string
	o := collector("a", &got)
	require.NoError(t, bus.RegisterObserver(o))
	require.NoError(t, bus.UnregisterObserver(o))
	require.NoError(t, bus.UnregisterObserver(o))

	event, err := NewEvent("files", "test", nil)
	require.NoError(t, err)
	require.NoError(t, bus.NotifyObservers(context.Background(), event))
	assert.Empty(t, got)
	assert.Empty(t, bus.Observers())
}

func TestBusJoinsObserverErrors(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	boom := errors.New("boom")
	var got []string
	require.NoError(t, bus.RegisterObserver(NewFunctionalObserver("failing", func(context.Context, cloudevents.Event) error {
		return boom
	})))
	require.NoError(t, bus.RegisterObserver(collector("after", &got)))

	event, err := NewEvent("files", "test", nil)
	require.NoError(t, err)
	err = bus.NotifyObservers(context.Background(), event)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, []string{"after:files"}, got, "a failing observer must not block the others")
}

func TestBusRejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	err := bus.NotifyObservers(context.Background(), cloudevents.NewEvent())
	assert.Error(t, err)
}

func TestBusStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var got []string
	require.NoError(t, bus.RegisterObserver(collector("a", &got)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	event, err := NewEvent("files", "test", nil)
	require.NoError(t, err)
	require.ErrorIs(t, bus.NotifyObservers(ctx, event), context.Canceled)
	assert.Empty(t, got)
}

// SPDX-License-Identifier: MPL-2.0

package module

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/moduni/moduni/internal/events"
)

// CloudEvent types emitted by a Module.
const (
	EventTypeFilesUpdated    = "io.moduni.module.files.updated"
	EventTypeVersionsUpdated = "io.moduni.module.versions.updated"
)

type (
	// Notifier receives the events a Module emits. internal/events.Bus is
	// the production implementation.
	Notifier interface {
		NotifyObservers(ctx context.Context, event cloudevents.Event) error
	}

	// FilesUpdated is the payload of EventTypeFilesUpdated.
	FilesUpdated struct {
		ModuleID string   `json:"moduleId"`
		Name     string   `json:"name"`
		Version  string   `json:"version"`
		Files    []string `json:"files"`
	}

	// VersionsUpdated is the payload of EventTypeVersionsUpdated.
	VersionsUpdated struct {
		ModuleID string   `json:"moduleId"`
		Name     string   `json:"name"`
		Versions []string `json:"versions"`
	}
)

func (m *Module) emit(ctx context.Context, eventType string, data any) {
	if m.notifier == nil {
		return
	}
	event, err := events.NewEvent(eventType, "moduni/module/"+m.id.String(), data)
	if err != nil {
		m.logger.Warn("encode module event", "type", eventType, "error", err)
		return
	}
	if err := m.notifier.NotifyObservers(ctx, event); err != nil {
		m.logger.Warn("notify module observers", "type", eventType, "error", err)
	}
}

// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"

	"github.com/moduni/moduni/internal/events"
	"github.com/moduni/moduni/pkg/module"
)

// EventTypeModulesUpdated is emitted after every workflow with the full
// module lists.
const EventTypeModulesUpdated = "io.moduni.registry.modules.updated"

type (
	// ModuleSummary describes one module in a ModulesUpdated payload.
	ModuleSummary struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Version string `json:"version"`
		Path    string `json:"path,omitempty"`
		Manager string `json:"manager,omitempty"`
	}

	// ModulesUpdated is the payload of EventTypeModulesUpdated.
	ModulesUpdated struct {
		Local  []ModuleSummary `json:"local"`
		Remote []ModuleSummary `json:"remote"`
	}
)

func summarize(m *module.Module) ModuleSummary {
	return ModuleSummary{
		ID:      m.ID().String(),
		Name:    m.Name(),
		Version: m.CurrentVersion().String(),
		Path:    m.Snapshot().Path,
	}
}

func (r *Registry) broadcast(ctx context.Context) {
	if r.notifier == nil {
		return
	}
	payload := ModulesUpdated{}
	for _, m := range r.Modules() {
		payload.Local = append(payload.Local, summarize(m))
	}
	for _, rm := range r.Remotes() {
		s := summarize(rm.Module)
		s.Path = rm.Remote.URL
		if rm.Manager != nil {
			s.Manager = rm.Manager.Name()
		}
		payload.Remote = append(payload.Remote, s)
	}
	event, err := events.NewEvent(EventTypeModulesUpdated, "moduni/registry", payload)
	if err != nil {
		r.logger.Warn("encode registry event", "error", err)
		return
	}
	if err := r.notifier.NotifyObservers(ctx, event); err != nil {
		r.logger.Warn("notify registry observers", "error", err)
	}
}

// SPDX-License-Identifier: MPL-2.0

package module

import (
	"context"
	"time"

	"github.com/moduni/moduni/internal/watch"
	"github.com/moduni/moduni/pkg/scm"
	"github.com/moduni/moduni/pkg/version"
)

// Watch re-derives the file status list and emits a files updated event
// whenever the working copy changes. It blocks until ctx is cancelled.
func (m *Module) Watch(ctx context.Context, debounce time.Duration) error {
	m.mu.Lock()
	repo := m.repo
	if repo == nil {
		err := m.wrap("watch", version.BranchVersion{}, scm.ErrRepositoryNotInitialized)
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	if repo.IsBare() {
		return nil
	}

	w, err := watch.New(watch.Config{
		Root:     repo.WorkingCopyPath(),
		Debounce: debounce,
		Logger:   m.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			m.logger.Debug("module files changed", "module", m.Name(), "count", len(changed))
			m.RefreshFiles(ctx)
			return nil
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

package storage

import (
	"log/slog"

	"github.com/kalambet/profiledir/internal/directory"
)

// Mirror persists directory changes to the store. When Outbox is set each
// change is also queued as a profile_event job for the relay.
type Mirror struct {
	store  *Store
	outbox bool
	logger *slog.Logger
}

// NewMirror returns a Mirror writing to store.
func NewMirror(store *Store, outbox bool, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{store: store, outbox: outbox, logger: logger}
}

// Notify implements directory.Notifier. Errors are logged; the in-memory
// directory stays authoritative.
func (m *Mirror) Notify(c directory.Change) {
	if err := m.store.ApplyChange(c, m.outbox); err != nil {
		m.logger.Error("mirroring profile change", "kind", c.Kind, "id", c.Profile.ID, "error", err)
	}
}

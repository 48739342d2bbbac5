package auditd

import (
	"context"
	"log/slog"
	"time"

	"vaultusd/core/events"
	"vaultusd/services/auditd/storage"
)

// Recorder persists every emitted engine event into the audit trail. It
// implements events.Emitter so it can be fanned in behind the engines via
// events.NewMultiEmitter.
type Recorder struct {
	store   *storage.Storage
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder wraps the storage layer. A nil logger falls back to the default.
func NewRecorder(store *storage.Storage, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger, timeout: 5 * time.Second}
}

// Emit writes the event to the trail. Persistence failures are logged, never
// propagated: the audit trail must not block settlement.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || r.store == nil || evt == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.store.RecordEvent(ctx, evt.EventType(), evt.Attributes()); err != nil {
		r.logger.Error("audit trail write failed",
			"type", evt.EventType(),
			"error", err,
		)
	}
}

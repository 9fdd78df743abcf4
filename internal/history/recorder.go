package history

import (
	"context"
	"log/slog"
	"time"

	"padsynth/internal/events"
	"padsynth/internal/logging"
	"padsynth/internal/mapping"
)

// Recorder copies config broadcasts into revisions and key presses into
// statistics.
type Recorder struct {
	store        *Store
	hub          *events.Hub
	maxRevisions int
	start        uint64
	logger       *slog.Logger
}

// NewRecorder returns a recorder keeping at most maxRevisions revisions
// (unbounded when zero).
func NewRecorder(store *Store, hub *events.Hub, maxRevisions int, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:        store,
		hub:          hub,
		maxRevisions: maxRevisions,
		start:        hub.Last(),
		logger:       logging.NewComponentLogger(logger, "history"),
	}
}

// Seed stores cfg as a revision when it differs from the newest one, so the
// mapping in effect at startup can always be restored.
func (r *Recorder) Seed(ctx context.Context, cfg *mapping.Config) error {
	return r.recordConfig(ctx, cfg, time.Now())
}

// Run follows the hub from its position when the recorder was created
// until ctx ends. Messages evicted before they were read are skipped with a
// warning.
func (r *Recorder) Run(ctx context.Context) error {
	cursor := r.start
	for {
		if r.hub.Behind(cursor) {
			first := r.hub.FirstSequence()
			logging.WarnWithContext(r.logger, "history recorder fell behind", "history_lagged",
				logging.Int64("skipped", int64(first-cursor-1)),
				logging.String(logging.FieldErrorHint, "check disk latency of the history database"),
				logging.String(logging.FieldImpact, "some key presses were not counted"),
			)
			cursor = first - 1
		}
		msgs, next, err := r.hub.Fetch(ctx, cursor, 64, true)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, msg := range msgs {
			r.handle(ctx, msg)
		}
		cursor = next
	}
}

func (r *Recorder) handle(ctx context.Context, msg events.Message) {
	switch msg.Type {
	case events.TypeConfig:
		if err := r.recordConfig(ctx, msg.Config, msg.Time); err != nil {
			r.logger.Error("failed to record mapping revision",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_revision_failed"),
			)
		}
	case events.TypeKey:
		if msg.Key == nil || msg.Key.Kind != "press" || msg.Key.Note == nil {
			return
		}
		if err := r.store.RecordPress(ctx, msg.Key.ID, *msg.Key.Note, msg.Time); err != nil {
			r.logger.Warn("failed to record key press",
				logging.KeyID(msg.Key.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_press_failed"),
				logging.String(logging.FieldErrorHint, "check the history database"),
				logging.String(logging.FieldImpact, "key statistics are incomplete"),
			)
		}
	}
}

func (r *Recorder) recordConfig(ctx context.Context, cfg *mapping.Config, at time.Time) error {
	if cfg == nil {
		return nil
	}
	data, err := mapping.Marshal(cfg)
	if err != nil {
		return err
	}
	rev, added, err := r.store.AddRevision(ctx, data, at)
	if err != nil || !added {
		return err
	}
	r.logger.Debug("mapping revision stored", logging.Revision(rev.ID))
	if r.maxRevisions > 0 {
		if _, err := r.store.PruneRevisions(ctx, r.maxRevisions); err != nil {
			return err
		}
	}
	return nil
}

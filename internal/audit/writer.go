package audit

import (
	"context"
	"time"

	"github.com/nerrad567/remo-relay/internal/signal"
)

// DefaultQueueSize is the number of entries Writer buffers before dropping.
const DefaultQueueSize = 256

// Logger is the subset of logging.Logger used by Writer.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Writer queues entries and writes them one at a time from Run, keeping
// audit writes off the request path. A full queue drops the entry.
//
// Writer is a signal.SendListener: every send attempt becomes an
// ActionSend entry.
type Writer struct {
	repo   Repository
	ch     chan *AuditLog
	logger Logger
}

// NewWriter creates a Writer with a queue of size entries.
// A size of zero or less uses DefaultQueueSize.
func NewWriter(repo Repository, logger Logger, size int) *Writer {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Writer{
		repo:   repo,
		ch:     make(chan *AuditLog, size),
		logger: logger,
	}
}

// Log queues entry without blocking.
func (w *Writer) Log(entry *AuditLog) {
	select {
	case w.ch <- entry:
	default:
		w.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"name", entry.Name,
		)
	}
}

// Record queues an entry built from its parts.
func (w *Writer) Record(action, name, source string, details map[string]any) {
	w.Log(&AuditLog{
		Action:    action,
		Name:      name,
		Source:    source,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
}

// SignalSent records a send attempt.
func (w *Writer) SignalSent(ev signal.SendEvent) {
	details := map[string]any{
		"event_id":    ev.ID.String(),
		"ok":          ev.OK(),
		"duration_ms": ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		details["error"] = ev.Err.Error()
	}
	w.Log(&AuditLog{
		Action:    ActionSend,
		Name:      ev.Name,
		Source:    SourceRelay,
		Details:   details,
		CreatedAt: ev.At.UTC(),
	})
}

// List reads entries straight from the repository.
func (w *Writer) List(ctx context.Context, filter Filter) (*ListResult, error) {
	return w.repo.List(ctx, filter)
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case entry := <-w.ch:
			w.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-w.ch:
					w.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(entry *AuditLog) {
	if err := w.repo.Create(context.Background(), entry); err != nil {
		w.logger.Error("audit log write failed",
			"action", entry.Action,
			"name", entry.Name,
			"error", err,
		)
	}
}

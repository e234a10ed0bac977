package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paymanager/internal/amqp"
	"paymanager/internal/core"
	"paymanager/internal/log"
	"paymanager/internal/metrics"
	"paymanager/internal/payments"
	"paymanager/internal/sheets"
)

const (
	TriggerEvent   = "event"
	TriggerStartup = "startup"
	TriggerPeriod  = "periodic"
)

// MirrorWorker copies the full payment snapshot and its dashboard to an
// external sheet whenever the collection changes.
type MirrorWorker struct {
	store   *payments.Store
	writer  sheets.SnapshotWriter
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time
	loc     *time.Location

	// writes are serialized so a slow event write never interleaves with a
	// periodic one
	mu sync.Mutex
}

type Option func(*MirrorWorker)

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *MirrorWorker) { w.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(w *MirrorWorker) { w.logger = l.WithComponent(log.ComponentWorker) }
}

func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(w *MirrorWorker) {
		w.now = now
		if loc != nil {
			w.loc = loc
		}
	}
}

func NewMirrorWorker(store *payments.Store, writer sheets.SnapshotWriter, opts ...Option) *MirrorWorker {
	w := &MirrorWorker{
		store:  store,
		writer: writer,
		logger: log.Discard(),
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleEvent mirrors the snapshot in response to a payment event. Returning
// an error requeues the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.PaymentEventMessage) error {
	w.logger.InfoContext(ctx, "Processing payment event",
		log.FieldEventType, msg.Type,
		log.FieldPaymentName, msg.Name)
	return w.mirror(ctx, TriggerEvent)
}

// Resync mirrors the snapshot regardless of events, recovering from messages
// lost while the worker was down.
func (w *MirrorWorker) Resync(ctx context.Context, trigger string) error {
	return w.mirror(ctx, trigger)
}

func (w *MirrorWorker) mirror(ctx context.Context, trigger string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap, err := w.store.List(ctx)
	if err != nil {
		w.metrics.RecordMirrorWrite(trigger, err)
		return fmt.Errorf("load payments: %w", err)
	}
	if len(snap.Skipped) > 0 {
		w.metrics.RecordSkipped(len(snap.Skipped))
		w.logger.WarnContext(ctx, "Skipped unreadable payments while mirroring",
			log.FieldSkipped, len(snap.Skipped))
	}

	summary := core.Summarize(snap.Payments, w.now().In(w.loc))
	err = w.writer.WriteSnapshot(ctx, snap.Payments, summary)
	w.metrics.RecordMirrorWrite(trigger, err)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	w.logger.InfoContext(ctx, "Snapshot mirrored",
		log.FieldOperation, log.OpSync,
		log.FieldCount, len(snap.Payments),
		"trigger", trigger)
	return nil
}

// Run resyncs once at startup and then every interval until ctx is done.
// Failed resyncs are logged and retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.Resync(ctx, TriggerStartup); err != nil {
		w.logger.ErrorContext(ctx, "Startup resync failed", log.FieldError, err)
	}
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Mirror worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.Resync(ctx, TriggerPeriod); err != nil {
				w.logger.ErrorContext(ctx, "Periodic resync failed", log.FieldError, err)
			}
		}
	}
}

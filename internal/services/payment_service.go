// Package services orchestrates payment operations across the store, the
// event publisher and the metrics.
package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"paymanager/internal/amqp"
	"paymanager/internal/core"
	"paymanager/internal/log"
	"paymanager/internal/metrics"
	"paymanager/internal/payments"
)

// EventPublisher announces payment changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, msg *amqp.PaymentEventMessage) error
}

type PaymentService struct {
	store     *payments.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *log.StructuredLogger
	now       func() time.Time
	loc       *time.Location
}

type Option func(*PaymentService)

func WithPublisher(p EventPublisher) Option {
	return func(s *PaymentService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PaymentService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *PaymentService) {
		s.logger = log.NewStructuredLogger(l.WithComponent(log.ComponentPayments))
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *PaymentService) { s.now = now }
}

// WithLocation sets the zone used to read due dates and bound weeks and months.
func WithLocation(loc *time.Location) Option {
	return func(s *PaymentService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewPaymentService(store *payments.Store, opts ...Option) *PaymentService {
	s := &PaymentService{
		store:  store,
		logger: log.NewStructuredLogger(log.Discard()),
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PaymentService) clock() time.Time {
	return s.now().In(s.loc)
}

// Location returns the zone due dates are read in.
func (s *PaymentService) Location() *time.Location { return s.loc }

func (s *PaymentService) Init(ctx context.Context) error {
	if err := s.store.Init(ctx); err != nil {
		s.logger.LogError(ctx, "Failed to initialize payment store", err, log.ErrorTypeDatabase, log.OpStartup, nil)
		return err
	}
	return nil
}

// Ready reports whether the underlying store is reachable.
func (s *PaymentService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SchemaVersion reports the store's migration version; ok is false when the
// backend has no schema.
func (s *PaymentService) SchemaVersion() (version uint, ok bool, err error) {
	return s.store.SchemaVersion()
}

// Create validates raw input and stores the new payment.
func (s *PaymentService) Create(ctx context.Context, in core.PaymentInput) (core.Payment, error) {
	p, err := core.NewPayment(in, s.clock(), s.loc)
	if err == nil {
		err = s.store.Create(ctx, p)
	}
	s.record(ctx, log.OpCreate, in.Name, err)
	if err != nil {
		return core.Payment{}, err
	}
	s.logPayment(ctx, log.OpCreate, p)
	s.publish(ctx, amqp.EventCreated, p.Name, p.ID)
	return p, nil
}

func (s *PaymentService) Get(ctx context.Context, name string) (core.Payment, error) {
	p, err := s.store.Get(ctx, strings.TrimSpace(name))
	if err != nil {
		s.record(ctx, log.OpRead, name, err)
		return core.Payment{}, err
	}
	return p, nil
}

// List returns the stored payments filtered and sorted per opts. Records
// that could not be decoded are reported in Skipped.
func (s *PaymentService) List(ctx context.Context, opts ListOptions) (payments.Snapshot, error) {
	snap, err := s.snapshot(ctx, log.OpList)
	if err != nil {
		return payments.Snapshot{}, err
	}
	snap.Payments = opts.apply(snap.Payments)
	return snap, nil
}

func (s *PaymentService) snapshot(ctx context.Context, op string) (payments.Snapshot, error) {
	snap, err := s.store.List(ctx)
	if err != nil {
		s.record(ctx, op, "", err)
		return payments.Snapshot{}, err
	}
	s.metrics.RecordSkipped(len(snap.Skipped))
	s.logger.LogSnapshot(ctx, op, len(snap.Payments), len(snap.Skipped))
	return snap, nil
}

// Update applies patch to the payment called name.
func (s *PaymentService) Update(ctx context.Context, name string, patch core.PaymentPatch) (core.Payment, error) {
	p, err := s.update(ctx, log.OpUpdate, name, patch)
	s.record(ctx, log.OpUpdate, name, err)
	return p, err
}

// MarkPaid sets the payment status to paid.
func (s *PaymentService) MarkPaid(ctx context.Context, name string) (core.Payment, error) {
	paid := core.StatusPaid
	p, err := s.update(ctx, log.OpMarkPaid, name, core.PaymentPatch{Status: &paid})
	s.record(ctx, log.OpMarkPaid, name, err)
	return p, err
}

func (s *PaymentService) update(ctx context.Context, op, name string, patch core.PaymentPatch) (core.Payment, error) {
	current, err := s.store.Get(ctx, strings.TrimSpace(name))
	if err != nil {
		return core.Payment{}, err
	}
	now := s.clock()
	next, err := core.ApplyPatch(current, patch, now)
	if err != nil {
		return core.Payment{}, err
	}
	stored, err := s.store.Update(ctx, next, now)
	if err != nil {
		return core.Payment{}, err
	}
	s.logPayment(ctx, op, stored)
	s.publish(ctx, amqp.EventUpdated, stored.Name, stored.ID)
	return stored, nil
}

// Restore writes backed up payments as they are, replacing any stored payment
// with the same name. It stops at the first payment that cannot be written and
// returns how many were restored before it.
func (s *PaymentService) Restore(ctx context.Context, backup []core.Payment) (int, error) {
	for i, p := range backup {
		err := s.store.Save(ctx, p)
		s.record(ctx, log.OpRestore, p.Name, err)
		if err != nil {
			return i, fmt.Errorf("restore %q: %w", p.Name, err)
		}
		s.logPayment(ctx, log.OpRestore, p)
		s.publish(ctx, amqp.EventUpdated, p.Name, p.ID)
	}
	return len(backup), nil
}

func (s *PaymentService) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	err := s.store.Delete(ctx, name)
	s.record(ctx, log.OpDelete, name, err)
	if err != nil {
		return err
	}
	s.logger.Logger().InfoContext(ctx, "Payment deleted", log.FieldPaymentName, name)
	s.publish(ctx, amqp.EventDeleted, name, "")
	return nil
}

// DeleteAll removes every stored payment.
func (s *PaymentService) DeleteAll(ctx context.Context) error {
	err := s.store.DeleteAll(ctx)
	s.record(ctx, log.OpDeleteAll, "", err)
	if err != nil {
		return err
	}
	s.logger.Logger().WarnContext(ctx, "All payments deleted")
	s.publish(ctx, amqp.EventPurged, "", "")
	return nil
}

// Dashboard summarizes the current snapshot.
func (s *PaymentService) Dashboard(ctx context.Context) (core.Summary, error) {
	snap, err := s.snapshot(ctx, log.OpDashboard)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(snap.Payments, s.clock()), nil
}

// RefreshStatuses re-derives the status of every unpaid payment and stores
// the ones that changed. It returns the updated payments.
func (s *PaymentService) RefreshStatuses(ctx context.Context) ([]core.Payment, error) {
	snap, err := s.snapshot(ctx, log.OpRefresh)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	var changed []core.Payment
	for _, p := range snap.Payments {
		next := p.WithDerivedStatus(now)
		if next.Status == p.Status {
			continue
		}
		stored, err := s.store.Update(ctx, next, now)
		if err != nil {
			s.record(ctx, log.OpRefresh, p.Name, err)
			return changed, err
		}
		changed = append(changed, stored)
		s.publish(ctx, amqp.EventUpdated, stored.Name, stored.ID)
	}
	s.record(ctx, log.OpRefresh, "", nil)
	s.logger.Logger().InfoContext(ctx, "Payment statuses refreshed",
		log.FieldCount, len(changed))
	return changed, nil
}

func (s *PaymentService) publish(ctx context.Context, t amqp.EventType, name, id string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishPaymentEvent(ctx, amqp.NewPaymentEventMessage(t, name, id))
	s.metrics.RecordEvent(string(t), err)
	if err != nil {
		s.logger.LogError(ctx, "Failed to publish payment event", err, log.ErrorTypeNetwork, log.OpPublish,
			log.LogFields{log.FieldEventType: string(t), log.FieldPaymentName: name})
	}
}

func (s *PaymentService) logPayment(ctx context.Context, op string, p core.Payment) {
	s.logger.LogPayment(ctx, op, p.ID, p.Name, p.AmountMoney().Cents, string(p.Status))
}

func (s *PaymentService) record(ctx context.Context, op, name string, err error) {
	result, errorType := Classify(err)
	s.metrics.RecordOperation(op, result)
	if err == nil {
		return
	}
	fields := log.NewFields()
	if name != "" {
		fields[log.FieldPaymentName] = name
	}
	if result == metrics.ResultError {
		s.logger.LogError(ctx, "Payment "+op+" failed", err, errorType, op, fields)
		return
	}
	fields = fields.WithError(err).WithErrorType(errorType).WithOperation(op)
	s.logger.Logger().WarnContext(ctx, "Payment "+op+" rejected", fields.ToSlice()...)
}

// Classify maps an operation error to its metrics result and log error type.
func Classify(err error) (result, errorType string) {
	var (
		verr *core.ValidationError
		dup  *payments.DuplicateKeyError
	)
	switch {
	case err == nil:
		return metrics.ResultSuccess, ""
	case errors.As(err, &verr):
		return metrics.ResultInvalid, log.ErrorTypeValidation
	case errors.As(err, &dup):
		return metrics.ResultConflict, log.ErrorTypeConflict
	case errors.Is(err, payments.ErrNotFound):
		return metrics.ResultNotFound, log.ErrorTypeNotFound
	default:
		return metrics.ResultError, log.ErrorTypeDatabase
	}
}

// SortField names a column payments can be ordered by.
type SortField string

const (
	SortName      SortField = "name"
	SortAmount    SortField = "amount"
	SortDueAt     SortField = "dueAt"
	SortStatus    SortField = "status"
	SortCreatedAt SortField = "createdAt"
)

var ErrInvalidSort = errors.New("invalid sort field")

func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return SortName, nil
	case "amount":
		return SortAmount, nil
	case "dueat", "due":
		return SortDueAt, nil
	case "status":
		return SortStatus, nil
	case "createdat", "created":
		return SortCreatedAt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

// ListOptions filters and orders a listing. The zero value lists everything
// by name.
type ListOptions struct {
	Status core.Status
	Query  string
	Sort   SortField
	Desc   bool
}

func (o ListOptions) apply(in []core.Payment) []core.Payment {
	q := strings.ToLower(strings.TrimSpace(o.Query))
	out := make([]core.Payment, 0, len(in))
	for _, p := range in {
		if o.Status != "" && p.Status != o.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) {
			continue
		}
		out = append(out, p)
	}
	cmpFn := compareBy(o.Sort)
	slices.SortStableFunc(out, func(a, b core.Payment) int {
		c := cmpFn(a, b)
		if c == 0 {
			c = strings.Compare(a.Name, b.Name)
		}
		if o.Desc {
			return -c
		}
		return c
	})
	return out
}

func statusRank(s core.Status) int {
	return slices.Index(core.Statuses, s)
}

func compareBy(f SortField) func(a, b core.Payment) int {
	switch f {
	case SortAmount:
		return func(a, b core.Payment) int { return cmp.Compare(a.AmountMoney().Cents, b.AmountMoney().Cents) }
	case SortDueAt:
		return func(a, b core.Payment) int { return a.DueAt.Compare(b.DueAt) }
	case SortStatus:
		return func(a, b core.Payment) int { return cmp.Compare(statusRank(a.Status), statusRank(b.Status)) }
	case SortCreatedAt:
		return func(a, b core.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return func(a, b core.Payment) int { return strings.Compare(a.Name, b.Name) }
	}
}

package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationKind separates shape problems from unparsable dates so callers
// can show a precise message.
type ValidationKind string

const (
	KindSchema ValidationKind = "schema"
	KindDate   ValidationKind = "date"
)

var ErrEmptyPatch = errors.New("nothing to update")

// ValidationError is returned for input rejected before any I/O.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func schemaError(field string, err error) *ValidationError {
	return &ValidationError{Kind: KindSchema, Field: field, Err: err}
}

func dateError(field string, err error) *ValidationError {
	return &ValidationError{Kind: KindDate, Field: field, Err: err}
}

// PaymentInput is raw user input. DueTime is optional and joined to DueDate.
type PaymentInput struct {
	Name    string `json:"name"`
	Amount  string `json:"amount"`
	DueDate string `json:"dueDate"`
	DueTime string `json:"dueTime,omitempty"`
}

// PaymentDraft is parsed input that has not yet been checked against the
// record invariants.
type PaymentDraft struct {
	Name   string    `json:"name" validate:"required,min=3,max=255"`
	Amount Money     `json:"-"`
	DueAt  time.Time `json:"dueAt" validate:"required"`
}

func joinDue(date, clock string) string {
	date = strings.TrimSpace(date)
	if clock = strings.TrimSpace(clock); clock != "" {
		return date + " " + clock
	}
	return date
}

// ParsePaymentInput turns raw strings into a typed draft. Name and amount
// failures are schema errors; an unparsable due date is a date error.
func ParsePaymentInput(in PaymentInput, loc *time.Location) (PaymentDraft, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return PaymentDraft{}, schemaError("amount", err)
	}
	draft := PaymentDraft{
		Name:   strings.TrimSpace(in.Name),
		Amount: amount,
	}
	if err := validate.Var(draft.Name, "required,min=3,max=255"); err != nil {
		return PaymentDraft{}, schemaError("name", fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidName, MinNameLength, MaxNameLength))
	}
	dueAt, err := ParseDueDate(joinDue(in.DueDate, in.DueTime), loc)
	if err != nil {
		return PaymentDraft{}, dateError("dueAt", err)
	}
	draft.DueAt = dueAt
	return draft, nil
}

// Validate checks the draft invariants.
func (d PaymentDraft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return toValidationError(err, ErrInvalidPayment)
	}
	if d.Amount.Cents < 0 {
		return schemaError("amount", fmt.Errorf("%w: negative", ErrInvalidAmount))
	}
	return nil
}

// Build stamps a validated draft with identity, timestamps and status.
func (d PaymentDraft) Build(now time.Time) Payment {
	return Payment{
		ID:        NewPaymentID(),
		Name:      d.Name,
		Amount:    d.Amount.Euros(),
		DueAt:     d.DueAt,
		Status:    DeriveStatus(d.DueAt, now),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewPayment validates raw input and builds a payment at now.
func NewPayment(in PaymentInput, now time.Time, loc *time.Location) (Payment, error) {
	draft, err := ParsePaymentInput(in, loc)
	if err != nil {
		return Payment{}, err
	}
	if err := draft.Validate(); err != nil {
		return Payment{}, err
	}
	p := draft.Build(now)
	if err := p.Validate(); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// PatchInput is a raw partial update. Empty fields are left unchanged.
type PatchInput struct {
	Amount  string `json:"amount,omitempty"`
	DueDate string `json:"dueDate,omitempty"`
	DueTime string `json:"dueTime,omitempty"`
	Status  string `json:"status,omitempty"`
}

// PaymentPatch is a parsed partial update.
type PaymentPatch struct {
	Amount *Money
	DueAt  *time.Time
	Status *Status
}

func (p PaymentPatch) Empty() bool {
	return p.Amount == nil && p.DueAt == nil && p.Status == nil
}

func ParsePatchInput(in PatchInput, loc *time.Location) (PaymentPatch, error) {
	var patch PaymentPatch
	if strings.TrimSpace(in.Amount) != "" {
		m, err := ParseAmount(in.Amount)
		if err != nil {
			return PaymentPatch{}, schemaError("amount", err)
		}
		patch.Amount = &m
	}
	if strings.TrimSpace(in.Status) != "" {
		st, err := ParseStatus(in.Status)
		if err != nil {
			return PaymentPatch{}, schemaError("status", err)
		}
		patch.Status = &st
	}
	if strings.TrimSpace(in.DueDate) != "" {
		t, err := ParseDueDate(joinDue(in.DueDate, in.DueTime), loc)
		if err != nil {
			return PaymentPatch{}, dateError("dueAt", err)
		}
		patch.DueAt = &t
	}
	if patch.Empty() {
		return PaymentPatch{}, schemaError("", ErrEmptyPatch)
	}
	return patch, nil
}

// ApplyPatch returns p with the patch applied at now.
//
// Setting status paid marks the payment paid. Setting any other status reopens
// it and the status is re-derived from the due date. A due date change on an
// unpaid payment is re-derived as well.
func ApplyPatch(p Payment, patch PaymentPatch, now time.Time) (Payment, error) {
	if patch.Empty() {
		return p, schemaError("", ErrEmptyPatch)
	}
	if patch.Amount != nil {
		p.Amount = patch.Amount.Euros()
	}
	rederive := false
	if patch.DueAt != nil && !patch.DueAt.Equal(p.DueAt) {
		p.DueAt = *patch.DueAt
		rederive = true
	}
	if patch.Status != nil {
		if *patch.Status == StatusPaid {
			p.Status = StatusPaid
			rederive = false
		} else {
			p.Status = StatusPending
			rederive = true
		}
	}
	if rederive && !p.IsPaid() {
		p.Status = DeriveStatus(p.DueAt, now)
	}
	p.UpdatedAt = now
	if p.UpdatedAt.Before(p.CreatedAt) {
		p.UpdatedAt = p.CreatedAt
	}
	if err := p.Validate(); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func toValidationError(err error, fallback error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return schemaError("", fmt.Errorf("%w: %v", fallback, err))
	}
	fe := verrs[0]
	field := fe.Field()
	switch field {
	case "name":
		return schemaError(field, fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidName, MinNameLength, MaxNameLength))
	case "amount":
		return schemaError(field, fmt.Errorf("%w: must be non-negative with at most two decimals", ErrInvalidAmount))
	case "dueAt":
		return dateError(field, fmt.Errorf("%w: missing", ErrInvalidDueDate))
	case "status":
		return schemaError(field, fmt.Errorf("%w: %v", ErrInvalidStatus, fe.Value()))
	}
	return schemaError(field, fmt.Errorf("%w: %s failed %s", fallback, field, fe.Tag()))
}

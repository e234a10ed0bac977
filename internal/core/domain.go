package core

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFuture  Status = "future"
	StatusLate    Status = "late"
)

const (
	MinNameLength = 3
	MaxNameLength = 255
)

type (
	Status string

	Money struct {
		Cents int64
	}

	// Payment is a single trackable obligation. Amount is kept as a float for
	// the stored JSON shape; use AmountMoney for arithmetic.
	Payment struct {
		ID        string    `json:"id" yaml:"id" validate:"required,uuid4"`
		Name      string    `json:"name" yaml:"name" validate:"required,min=3,max=255"`
		Amount    float64   `json:"amount" yaml:"amount" validate:"gte=0,cents"`
		DueAt     time.Time `json:"dueAt" yaml:"dueAt" validate:"required"`
		Status    Status    `json:"status" yaml:"status" validate:"required,oneof=pending paid future late"`
		CreatedAt time.Time `json:"createdAt" yaml:"createdAt" validate:"required"`
		UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt" validate:"required,gtefield=CreatedAt"`
	}
)

// Statuses lists every status in chart order.
var Statuses = []Status{StatusPending, StatusLate, StatusFuture, StatusPaid}

var (
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDueDate = errors.New("invalid due date")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidPayment = errors.New("invalid payment")
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("cents", validateCents)
}

// validateCents reports whether a float amount has no sub-cent part.
func validateCents(fl validator.FieldLevel) bool {
	scaled := fl.Field().Float() * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFuture, StatusLate:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// NewPaymentID returns a random version 4 UUID.
func NewPaymentID() string {
	return uuid.NewString()
}

// MoneyFromFloat rounds a float amount to the nearest cent.
func MoneyFromFloat(f float64) Money {
	return Money{Cents: int64(math.Round(f * 100))}
}

// AmountMoney returns the payment amount in cents.
func (p Payment) AmountMoney() Money {
	return MoneyFromFloat(p.Amount)
}

func (p Payment) IsPaid() bool { return p.Status == StatusPaid }

// Validate checks every stored-record invariant.
func (p Payment) Validate() error {
	if err := validate.Struct(p); err != nil {
		return toValidationError(err, ErrInvalidPayment)
	}
	return nil
}

// WithDerivedStatus re-runs status derivation for unpaid payments.
// A paid payment is returned unchanged.
func (p Payment) WithDerivedStatus(now time.Time) Payment {
	if p.IsPaid() {
		return p
	}
	p.Status = DeriveStatus(p.DueAt, now)
	return p
}

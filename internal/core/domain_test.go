package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestNewPayment(t *testing.T) {
	p, err := NewPayment(PaymentInput{Name: "  Rent  ", Amount: "19,99", DueDate: "25/12/2025"}, testNow, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "Rent", p.Name)
	assert.Equal(t, 19.99, p.Amount)
	assert.True(t, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC).Equal(p.DueAt))
	assert.Equal(t, StatusFuture, p.Status)
	assert.Equal(t, testNow, p.CreatedAt)
	assert.Equal(t, testNow, p.UpdatedAt)

	id, err := uuid.Parse(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())
}

func TestNewPaymentWithTime(t *testing.T) {
	p, err := NewPayment(PaymentInput{Name: "Gym", Amount: "1999", DueDate: "17/06/2025", DueTime: "14:30"}, testNow, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1999.0, p.Amount)
	assert.True(t, time.Date(2025, 6, 17, 14, 30, 0, 0, time.UTC).Equal(p.DueAt))
	assert.Equal(t, StatusPending, p.Status)
}

func TestNewPaymentAssignsDistinctIDs(t *testing.T) {
	in := PaymentInput{Name: "Rent", Amount: "1", DueDate: "01/01/2025"}
	a, err := NewPayment(in, testNow, time.UTC)
	require.NoError(t, err)
	b, err := NewPayment(in, testNow, time.UTC)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, StatusLate, a.Status)
}

func TestNewPaymentRejects(t *testing.T) {
	cases := []struct {
		name  string
		in    PaymentInput
		kind  ValidationKind
		field string
		err   error
	}{
		{"short name", PaymentInput{Name: "ab", Amount: "1", DueDate: "25/12/2025"}, KindSchema, "name", ErrInvalidName},
		{"blank name", PaymentInput{Name: "   ", Amount: "1", DueDate: "25/12/2025"}, KindSchema, "name", ErrInvalidName},
		{"long name", PaymentInput{Name: strings.Repeat("x", 256), Amount: "1", DueDate: "25/12/2025"}, KindSchema, "name", ErrInvalidName},
		{"leading separator", PaymentInput{Name: "Rent", Amount: ",99", DueDate: "25/12/2025"}, KindSchema, "amount", ErrInvalidAmount},
		{"two separators", PaymentInput{Name: "Rent", Amount: "19,9,9", DueDate: "25/12/2025"}, KindSchema, "amount", ErrInvalidAmount},
		{"iso date", PaymentInput{Name: "Rent", Amount: "1", DueDate: "2025-12-25"}, KindDate, "dueAt", ErrInvalidDueDate},
		{"bad time", PaymentInput{Name: "Rent", Amount: "1", DueDate: "25/12/2025", DueTime: "25:00"}, KindDate, "dueAt", ErrInvalidDueDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPayment(tc.in, testNow, time.UTC)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.kind, verr.Kind)
			assert.Equal(t, tc.field, verr.Field)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestNewPaymentAcceptsNameBounds(t *testing.T) {
	for _, name := range []string{"abc", strings.Repeat("x", 255), "Caffè"} {
		_, err := NewPayment(PaymentInput{Name: name, Amount: "1", DueDate: "25/12/2025"}, testNow, time.UTC)
		assert.NoError(t, err, "name of %d runes", len([]rune(name)))
	}
}

func validPayment() Payment {
	return Payment{
		ID:        NewPaymentID(),
		Name:      "Rent",
		Amount:    10.5,
		DueAt:     testNow.AddDate(0, 0, 2),
		Status:    StatusFuture,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestPaymentValidate(t *testing.T) {
	require.NoError(t, validPayment().Validate())

	cases := []struct {
		name   string
		mutate func(*Payment)
		err    error
	}{
		{"sub-cent amount", func(p *Payment) { p.Amount = 19.999 }, ErrInvalidAmount},
		{"negative amount", func(p *Payment) { p.Amount = -1 }, ErrInvalidAmount},
		{"unknown status", func(p *Payment) { p.Status = "done" }, ErrInvalidStatus},
		{"short name", func(p *Payment) { p.Name = "ab" }, ErrInvalidName},
		{"bad id", func(p *Payment) { p.ID = "not-a-uuid" }, ErrInvalidPayment},
		{"updated before created", func(p *Payment) { p.UpdatedAt = p.CreatedAt.Add(-time.Second) }, ErrInvalidPayment},
		{"missing due date", func(p *Payment) { p.DueAt = time.Time{} }, ErrInvalidDueDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayment()
			tc.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestParsePatchInput(t *testing.T) {
	patch, err := ParsePatchInput(PatchInput{Amount: "5,50", Status: "paid"}, time.UTC)
	require.NoError(t, err)
	require.NotNil(t, patch.Amount)
	assert.Equal(t, int64(550), patch.Amount.Cents)
	require.NotNil(t, patch.Status)
	assert.Equal(t, StatusPaid, *patch.Status)
	assert.Nil(t, patch.DueAt)

	_, err = ParsePatchInput(PatchInput{}, time.UTC)
	assert.ErrorIs(t, err, ErrEmptyPatch)

	_, err = ParsePatchInput(PatchInput{DueDate: "2025-01-01"}, time.UTC)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindDate, verr.Kind)

	_, err = ParsePatchInput(PatchInput{Status: "cancelled"}, time.UTC)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestApplyPatch(t *testing.T) {
	later := testNow.Add(time.Hour)
	past := testNow.AddDate(0, 0, -1)
	paid := StatusPaid
	pending := StatusPending
	amount := Money{Cents: 2000}

	t.Run("amount only keeps status", func(t *testing.T) {
		p, err := ApplyPatch(validPayment(), PaymentPatch{Amount: &amount}, later)
		require.NoError(t, err)
		assert.Equal(t, 20.0, p.Amount)
		assert.Equal(t, StatusFuture, p.Status)
		assert.Equal(t, later, p.UpdatedAt)
	})

	t.Run("due date change re-derives", func(t *testing.T) {
		p, err := ApplyPatch(validPayment(), PaymentPatch{DueAt: &past}, later)
		require.NoError(t, err)
		assert.Equal(t, StatusLate, p.Status)
	})

	t.Run("mark paid", func(t *testing.T) {
		p, err := ApplyPatch(validPayment(), PaymentPatch{Status: &paid, DueAt: &past}, later)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, p.Status)
		assert.True(t, past.Equal(p.DueAt))
	})

	t.Run("paid survives due date change", func(t *testing.T) {
		base := validPayment()
		base.Status = StatusPaid
		p, err := ApplyPatch(base, PaymentPatch{DueAt: &past}, later)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, p.Status)
	})

	t.Run("reopen re-derives", func(t *testing.T) {
		base := validPayment()
		base.Status = StatusPaid
		base.DueAt = past
		p, err := ApplyPatch(base, PaymentPatch{Status: &pending}, later)
		require.NoError(t, err)
		assert.Equal(t, StatusLate, p.Status)
	})

	t.Run("updatedAt never precedes createdAt", func(t *testing.T) {
		p, err := ApplyPatch(validPayment(), PaymentPatch{Amount: &amount}, testNow.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, testNow, p.UpdatedAt)
	})

	t.Run("empty patch", func(t *testing.T) {
		_, err := ApplyPatch(validPayment(), PaymentPatch{}, later)
		assert.ErrorIs(t, err, ErrEmptyPatch)
	})
}

package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymanager/internal/core"
	"paymanager/internal/settings"
	"paymanager/internal/settings/memory"
)

var (
	created = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	later   = created.Add(2 * time.Hour)
)

func samplePayment(name string) core.Payment {
	return core.Payment{
		ID:        core.NewPaymentID(),
		Name:      name,
		Amount:    19.99,
		DueAt:     time.Date(2025, 12, 25, 14, 30, 0, 0, time.UTC),
		Status:    core.StatusFuture,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func newStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	kv := memory.New()
	s := NewStore(kv)
	require.NoError(t, s.Init(context.Background()))
	return s, kv
}

func assertSamePayment(t *testing.T, want, got core.Payment) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Amount, got.Amount)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, want.DueAt.Equal(got.DueAt), "dueAt %v != %v", want.DueAt, got.DueAt)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt %v != %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updatedAt %v != %v", want.UpdatedAt, got.UpdatedAt)
}

func TestCodecRoundTrip(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	p := samplePayment("Rent")
	p.DueAt = p.DueAt.In(loc)

	value, err := Encode(p)
	require.NoError(t, err)
	assert.Contains(t, value, `"dueAt":"2025-12-25T14:30:00Z"`)

	got, err := Decode("Rent", value)
	require.NoError(t, err)
	assertSamePayment(t, p, got)
}

func TestDecodeRevivesStringDates(t *testing.T) {
	value := `{"id":"3f1c2a9e-8b7d-4c6e-9a1b-2d3e4f5a6b7c","name":"Rent","amount":700.5,` +
		`"dueAt":"2025-12-25T00:00:00.000Z","status":"pending",` +
		`"createdAt":"2025-06-10T12:00:00.000Z","updatedAt":"2025-06-11T08:00:00.000Z"}`
	p, err := Decode("Rent", value)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC).Equal(p.DueAt))
	assert.True(t, time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC).Equal(p.UpdatedAt))
	assert.Equal(t, core.StatusPending, p.Status)
}

func TestDecodeRejects(t *testing.T) {
	for name, value := range map[string]string{
		"not json":       `{`,
		"bad date":       `{"id":"x","name":"Rent","dueAt":"tomorrow"}`,
		"invalid record": `{"id":"3f1c2a9e-8b7d-4c6e-9a1b-2d3e4f5a6b7c","name":"Rent","amount":1,"status":"done"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode("Rent", value)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, "Rent", perr.Key)
		})
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	p := samplePayment("Rent")

	require.NoError(t, s.Create(ctx, p))
	got, err := s.Get(ctx, "Rent")
	require.NoError(t, err)
	assertSamePayment(t, p, got)

	_, err = s.Get(ctx, "Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicateLeavesExisting(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	first := samplePayment("Rent")
	require.NoError(t, s.Create(ctx, first))

	second := samplePayment("Rent")
	second.Amount = 1
	err := s.Create(ctx, second)

	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "Rent", dup.Key)
	assert.Equal(t, DuplicateMessage, err.Error())
	assert.ErrorIs(t, err, settings.ErrDuplicateKey)

	got, err := s.Get(ctx, "Rent")
	require.NoError(t, err)
	assertSamePayment(t, first, got)
}

func TestCreateRejectsInvalid(t *testing.T) {
	s, _ := newStore(t)
	p := samplePayment("Rent")
	p.Amount = 1.234
	err := s.Create(context.Background(), p)
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestUpdateStampsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	p := samplePayment("Rent")
	require.NoError(t, s.Create(ctx, p))

	p.Status = core.StatusPaid
	stored, err := s.Update(ctx, p, later)
	require.NoError(t, err)
	assert.Equal(t, later, stored.UpdatedAt)

	got, err := s.Get(ctx, "Rent")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, got.Status)
	assert.True(t, later.Equal(got.UpdatedAt))
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = s.Update(ctx, samplePayment("Missing"), later)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateNeverStampsBeforeCreation(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	p := samplePayment("Rent")
	require.NoError(t, s.Create(ctx, p))

	stored, err := s.Update(ctx, p, created.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, created, stored.UpdatedAt)
}

func TestSaveUpsertsWithoutRestamping(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	p := samplePayment("Rent")
	require.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx, "Rent")
	require.NoError(t, err)
	assertSamePayment(t, p, got)

	p.Status = core.StatusPaid
	p.UpdatedAt = later
	require.NoError(t, s.Save(ctx, p))
	got, err = s.Get(ctx, "Rent")
	require.NoError(t, err)
	assertSamePayment(t, p, got)

	invalid := samplePayment("Rent")
	invalid.UpdatedAt = created.Add(-time.Hour)
	var verr *core.ValidationError
	require.True(t, errors.As(s.Save(ctx, invalid), &verr))

	got, err = s.Get(ctx, "Rent")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, got.Status)
}

func TestListIsolatesCorruptRecords(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)
	require.NoError(t, s.Create(ctx, samplePayment("Rent")))
	require.NoError(t, s.Create(ctx, samplePayment("Water")))
	require.NoError(t, kv.Create(ctx, "Broken", `{"name":`))

	snap, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Payments, 2)
	assert.Equal(t, "Rent", snap.Payments[0].Name)
	assert.Equal(t, "Water", snap.Payments[1].Name)
	require.Len(t, snap.Skipped, 1)
	assert.Equal(t, "Broken", snap.Skipped[0].Key)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Create(ctx, samplePayment("Rent")))
	require.NoError(t, s.Create(ctx, samplePayment("Water")))

	require.NoError(t, s.Delete(ctx, "Rent"))
	assert.ErrorIs(t, s.Delete(ctx, "Rent"), ErrNotFound)

	require.NoError(t, s.DeleteAll(ctx))
	snap, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Payments)
}

type failingStore struct {
	settings.Store
	err error
}

func (f failingStore) GetAll(context.Context) ([]settings.Entry, error) { return nil, f.err }

func (f failingStore) Create(context.Context, string, string) error { return f.err }

func (f failingStore) Save(context.Context, string, string) error { return f.err }

func (f failingStore) Ping(context.Context) error { return f.err }

type versionedStore struct {
	settings.Store
	version uint
	dirty   bool
}

func (v versionedStore) Version() (uint, bool, error) { return v.version, v.dirty, nil }

func TestSchemaVersion(t *testing.T) {
	s, _ := newStore(t)
	_, ok, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := NewStore(versionedStore{Store: memory.New(), version: 3}).SchemaVersion()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint(3), v)

	_, _, err = NewStore(versionedStore{Store: memory.New(), version: 4, dirty: true}).SchemaVersion()
	assert.ErrorIs(t, err, ErrDirtySchema)
}

func TestPersistenceErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	s := NewStore(failingStore{Store: memory.New(), err: boom})

	err := s.Create(ctx, samplePayment("Rent"))
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "create", perr.Op)
	assert.ErrorIs(t, err, boom)

	_, err = s.List(ctx)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "list", perr.Op)

	err = s.Save(ctx, samplePayment("Rent"))
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "save", perr.Op)
	assert.ErrorIs(t, err, boom)

	err = s.Ping(ctx)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "ping", perr.Op)
}

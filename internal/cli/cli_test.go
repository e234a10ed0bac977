package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"paymanager/internal/config"
	"paymanager/internal/core"
	"paymanager/internal/log"
	"paymanager/internal/payments"
	"paymanager/internal/services"
	"paymanager/internal/settings/memory"
	"paymanager/internal/storage"
)

type harness struct {
	app   *App
	kv    *memory.Store
	now   time.Time
	opens int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{kv: memory.New(), now: time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }
	svc := services.NewPaymentService(
		payments.NewStore(h.kv),
		services.WithClock(clock),
		services.WithLocation(time.UTC),
	)
	require.NoError(t, svc.Init(context.Background()))
	h.app = &App{
		Config:  &config.Config{DataBackend: config.BackendMemory},
		Logger:  log.Discard(),
		Service: svc,
	}
	return h
}

func (h *harness) run(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	root := NewRootCommand(Options{
		Out: &out,
		Err: &errOut,
		Open: func(context.Context) (*App, error) {
			h.opens++
			return h.app, nil
		},
	})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, _, err := h.run(args...)
	require.NoError(t, err, "paymanager %v", args)
	return out
}

func TestCreateAndList(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "create", "--name", "Rent", "--amount", "700,50", "--due", "25/12/2025")
	assert.Contains(t, out, "Rent")
	assert.Contains(t, out, "future")

	h.mustRun(t, "create", "--name", "Water", "--amount", "19,99", "--due", "9/6/2025", "--time", "08:00")

	out = h.mustRun(t, "list")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "700,50")
	assert.Contains(t, out, "25/12/2025 00:00")
	assert.Contains(t, out, "09/06/2025 08:00")

	var list []core.Payment
	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "list", "--sort", "amount", "--order", "desc", "-o", "json")), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Rent", list[0].Name)

	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "list", "--status", "late", "-o", "json")), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Water", list[0].Name)

	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(h.mustRun(t, "ls", "-q", "wat", "-o", "yaml")), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, "Water", fromYAML[0]["name"])
}

func TestCreateErrors(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "create", "--name", "Rent", "--amount", "1", "--due", "1/7/2025")

	_, _, err := h.run("create", "--name", "Rent", "--amount", "1", "--due", "1/7/2025")
	require.Error(t, err)
	assert.Equal(t, payments.DuplicateMessage, describe(err))

	_, _, err = h.run("create", "--name", "Water", "--amount", "1.50", "--due", "1/7/2025")
	require.Error(t, err)
	assert.Contains(t, describe(err), "invalid amount")

	_, _, err = h.run("create", "--name", "Water", "--amount", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"due" not set`)
}

func TestUpdatePayAndDelete(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "create", "--name", "Rent", "--amount", "700", "--due", "25/12/2025")

	var p core.Payment
	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "update", "Rent", "--amount", "750,25", "-o", "json")), &p))
	assert.Equal(t, 750.25, p.Amount)

	_, _, err := h.run("update", "Rent")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyPatch)

	assert.Contains(t, h.mustRun(t, "pay", "Rent"), `Marked "Rent" as paid (750,25)`)
	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "show", "Rent", "-o", "json")), &p))
	assert.Equal(t, core.StatusPaid, p.Status)

	assert.Contains(t, h.mustRun(t, "rm", "Rent"), `Deleted "Rent"`)
	_, _, err = h.run("show", "Rent")
	assert.ErrorIs(t, err, payments.ErrNotFound)
}

func TestPurge(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "create", "--name", "Rent", "--amount", "700", "--due", "25/12/2025")
	opens := h.opens

	_, _, err := h.run("purge")
	assert.ErrorIs(t, err, errPurgeNotConfirmed)
	assert.Equal(t, opens, h.opens, "store opened without confirmation")

	assert.Contains(t, h.mustRun(t, "purge", "--yes"), "All payments deleted")
	var list []core.Payment
	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "list", "-o", "json")), &list))
	assert.Empty(t, list)
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "dashboard")
	assert.Contains(t, out, "Health:")
	assert.Contains(t, out, "n/a")

	h.mustRun(t, "create", "--name", "Rent", "--amount", "75", "--due", "12/6/2025")
	h.mustRun(t, "create", "--name", "Water", "--amount", "25", "--due", "9/6/2025")
	h.mustRun(t, "pay", "Rent")

	out = h.mustRun(t, "dashboard")
	assert.Contains(t, out, "satisfactory (75.0%)")
	assert.Contains(t, out, "Total due:")
	assert.Contains(t, out, "100,00")

	var summary core.Summary
	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "dashboard", "-o", "json")), &summary))
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 25.0, summary.TotalUnpaid)
}

func TestRefreshStatus(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "create", "--name", "Rent", "--amount", "700", "--due", "12/6/2025")
	h.mustRun(t, "create", "--name", "Water", "--amount", "20", "--due", "30/6/2025")

	h.now = time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	out := h.mustRun(t, "refresh-status")
	assert.Contains(t, out, "1 payment(s) changed status")
	assert.Contains(t, out, "Rent: late")
}

func TestInitReportsSchemaVersion(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "init")
	assert.Contains(t, out, "Store ready (memory backend)")
	assert.NotContains(t, out, "Schema version")

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "paymanager.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	h.app = &App{
		Config:  &config.Config{DataBackend: config.BackendSQLite},
		Logger:  log.Discard(),
		Service: services.NewPaymentService(payments.NewStore(repo)),
	}
	out = h.mustRun(t, "init")
	assert.Contains(t, out, "Store ready (sqlite backend)")
	assert.Contains(t, out, "Schema version 1")
}

func TestRestoreFromListOutput(t *testing.T) {
	h := newHarness(t)
	created := h.now
	h.mustRun(t, "create", "--name", "Rent", "--amount", "700", "--due", "25/12/2025")
	h.mustRun(t, "create", "--name", "Water", "--amount", "19,99", "--due", "9/6/2025")

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "backup.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(h.mustRun(t, "list", "-o", "json")), 0o600))
	yamlPath := filepath.Join(dir, "backup.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(h.mustRun(t, "list", "-o", "yaml")), 0o600))

	h.now = h.now.Add(time.Hour)
	h.mustRun(t, "pay", "Rent")
	h.mustRun(t, "rm", "Water")

	assert.Contains(t, h.mustRun(t, "restore", jsonPath), "Restored 2 of 2 payment(s)")
	var p core.Payment
	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "show", "Rent", "-o", "json")), &p))
	assert.Equal(t, core.StatusFuture, p.Status)
	assert.True(t, created.Equal(p.UpdatedAt), "updatedAt %v", p.UpdatedAt)
	h.mustRun(t, "show", "Water")

	h.mustRun(t, "purge", "--yes")
	assert.Contains(t, h.mustRun(t, "restore", yamlPath), "Restored 2 of 2 payment(s)")
	var list []core.Payment
	require.NoError(t, json.Unmarshal([]byte(h.mustRun(t, "list", "-o", "json")), &list))
	require.Len(t, list, 2)
	assert.True(t, created.Equal(list[0].CreatedAt))
}

func TestRestoreRejectsInvalidBackup(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"name":"Rent","amount":1}]`), 0o600))
	out, _, err := h.run("restore", bad)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Contains(t, out, "Restored 0 of 1 payment(s)")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0o600))
	_, _, err = h.run("restore", broken)
	assert.ErrorContains(t, err, "read backup")

	_, _, err = h.run("restore", filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListReportsSkippedRecords(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.kv.Create(context.Background(), "Broken", "not json"))

	_, errOut, err := h.run("list")
	require.NoError(t, err)
	assert.Contains(t, errOut, `skipped unreadable record "Broken"`)
}

func TestListRejectsBadFlags(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"list", "--status", "done"},
		{"list", "--sort", "colour"},
		{"list", "--order", "up"},
		{"list", "-o", "xml"},
	} {
		_, _, err := h.run(args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestExecute(t *testing.T) {
	h := newHarness(t)
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), Options{
		Out:  &out,
		Err:  &errOut,
		Args: []string{"show", "Missing"},
		Open: func(context.Context) (*App, error) { return h.app, nil },
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Error: payment not found: Missing")

	errOut.Reset()
	code = Execute(context.Background(), Options{
		Out:  &out,
		Err:  &errOut,
		Args: []string{"list"},
		Open: func(context.Context) (*App, error) { return nil, errors.New("no store") },
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Error: no store")

	out.Reset()
	code = Execute(context.Background(), Options{
		Out:  &out,
		Err:  &errOut,
		Args: []string{"list"},
		Open: func(context.Context) (*App, error) { return h.app, nil },
	})
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "NAME")
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatTable, "table": FormatTable, "JSON": FormatJSON, " yaml ": FormatYAML}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestGracefulShutdownRunsCleanup(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(parent, log.Discard(), time.Second, func(ctx context.Context) {
		assert.NoError(t, ctx.Err())
		close(cleaned)
	})

	cancel()
	WaitForShutdown(ctx, done)

	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup did not run")
	}
}

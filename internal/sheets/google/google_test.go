package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"paymanager/internal/core"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func fixture() []core.Payment {
	return []core.Payment{
		{
			ID: "3f1c2a9e-8b7d-4c6e-9a1b-2d3e4f5a6b7c", Name: "Rent", Amount: 700.5,
			DueAt: testNow.Add(48 * time.Hour), Status: core.StatusFuture,
			CreatedAt: testNow, UpdatedAt: testNow,
		},
		{
			ID: "4a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d", Name: "Water", Amount: 19.99,
			DueAt: testNow.Add(-time.Hour), Status: core.StatusPaid,
			CreatedAt: testNow, UpdatedAt: testNow,
		},
	}
}

func TestPaymentRows(t *testing.T) {
	rows := PaymentRows(fixture())
	require.Len(t, rows, 3)
	assert.Equal(t, paymentHeader, rows[0])
	assert.Equal(t, "Rent", rows[1][1])
	assert.Equal(t, 700.5, rows[1][2])
	assert.Equal(t, "2025-06-12T12:00:00Z", rows[1][3])
	assert.Equal(t, "paid", rows[2][4])
}

func TestDashboardRows(t *testing.T) {
	s := core.Summarize(fixture(), testNow)
	rows := DashboardRows(s)

	byLabel := map[string]any{}
	for _, r := range rows {
		if len(r) == 2 {
			byLabel[r[0].(string)] = r[1]
		}
	}
	assert.Equal(t, 2, byLabel["Payments"])
	assert.Equal(t, 720.49, byLabel["Total due"])
	assert.Equal(t, core.HealthBad, byLabel["Health"])
	assert.Equal(t, 1, byLabel["future"])
	assert.Equal(t, 0, byLabel["late"])

	empty := DashboardRows(core.Summarize(nil, testNow))
	for _, r := range empty {
		if len(r) == 2 && r[0] == "Health %" {
			assert.Equal(t, "", r[1])
		}
	}
}

func TestSheetRangeQuotesName(t *testing.T) {
	assert.Equal(t, "'Payments'!A1", sheetRange("Payments", "A1"))
	assert.Equal(t, "'Bob''s'!A:Z", sheetRange("Bob's", "A:Z"))
}

type recordedCall struct {
	path string
	body map[string]any
}

func newTestClient(t *testing.T, status int) (*Client, *[]recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		calls = append(calls, recordedCall{path: r.URL.Path, body: body})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	c, err := NewWithService(svc, Config{SpreadsheetID: "sheet-1"}, nil)
	require.NoError(t, err)
	return c, &calls
}

func TestWriteSnapshot(t *testing.T) {
	c, calls := newTestClient(t, http.StatusOK)
	payments := fixture()

	err := c.WriteSnapshot(context.Background(), payments, core.Summarize(payments, testNow))
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.True(t, strings.HasSuffix((*calls)[0].path, "values:batchClear"), (*calls)[0].path)
	assert.True(t, strings.HasSuffix((*calls)[1].path, "values:batchUpdate"), (*calls)[1].path)

	update := (*calls)[1].body
	assert.Equal(t, "RAW", update["valueInputOption"])
	data := update["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "'Payments'!A1", data[0].(map[string]any)["range"])
	assert.Equal(t, "'Dashboard'!A1", data[1].(map[string]any)["range"])
	assert.Len(t, data[0].(map[string]any)["values"], 3)
}

func TestWriteSnapshotServerError(t *testing.T) {
	c, calls := newTestClient(t, http.StatusInternalServerError)
	err := c.WriteSnapshot(context.Background(), nil, core.Summarize(nil, testNow))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear sheets")
	assert.NotEmpty(t, *calls)
}

func TestNewWithServiceRequiresSpreadsheet(t *testing.T) {
	_, err := NewWithService(nil, Config{}, nil)
	assert.Error(t, err)
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	b, err := loadCredentials(Config{CredentialsJSON: ` {"type":"service_account"} `})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(b))

	_, err = loadCredentials(Config{})
	assert.Error(t, err)

	_, err = loadCredentials(Config{CredentialsFile: t.TempDir() + "/missing.json"})
	assert.Error(t, err)
}

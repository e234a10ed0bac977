package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"paymanager/internal/core"
	"paymanager/internal/log"
	ports "paymanager/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Config struct {
	SpreadsheetID  string
	PaymentsSheet  string
	DashboardSheet string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	paymentsSheet  string
	dashboardSheet string
	logger         *log.Logger
}

var _ ports.SnapshotWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account. When
// neither credential is set GOOGLE_APPLICATION_CREDENTIALS is read.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger)
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if cfg.PaymentsSheet == "" {
		cfg.PaymentsSheet = "Payments"
	}
	if cfg.DashboardSheet == "" {
		cfg.DashboardSheet = "Dashboard"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:            svc,
		spreadsheetID:  cfg.SpreadsheetID,
		paymentsSheet:  cfg.PaymentsSheet,
		dashboardSheet: cfg.DashboardSheet,
		logger:         logger.WithComponent(log.ComponentSheets),
	}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func sheetRange(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}

// WriteSnapshot clears both sheets and rewrites them in one batch.
func (c *Client) WriteSnapshot(ctx context.Context, payments []core.Payment, summary core.Summary) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	paymentsRange := sheetRange(c.paymentsSheet, "A:Z")
	dashboardRange := sheetRange(c.dashboardSheet, "A:Z")

	_, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{
		Ranges: []string{paymentsRange, dashboardRange},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheets: %w", err)
	}

	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*gsheet.ValueRange{
			{Range: sheetRange(c.paymentsSheet, "A1"), Values: PaymentRows(payments)},
			{Range: sheetRange(c.dashboardSheet, "A1"), Values: DashboardRows(summary)},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheets: %w", err)
	}

	c.logger.InfoContext(ctx, "Snapshot mirrored to spreadsheet",
		log.FieldCount, len(payments),
		"spreadsheet_id", c.spreadsheetID)
	return nil
}

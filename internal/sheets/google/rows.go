package google

import (
	"time"

	"paymanager/internal/core"
)

var paymentHeader = []any{"ID", "Name", "Amount", "Due", "Status", "Created", "Updated"}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// PaymentRows renders payments as a header row plus one row each.
func PaymentRows(payments []core.Payment) [][]any {
	rows := make([][]any, 0, len(payments)+1)
	rows = append(rows, paymentHeader)
	for _, p := range payments {
		rows = append(rows, []any{
			p.ID,
			p.Name,
			p.Amount,
			stamp(p.DueAt),
			string(p.Status),
			stamp(p.CreatedAt),
			stamp(p.UpdatedAt),
		})
	}
	return rows
}

func orBlank[T any](v *T) any {
	if v == nil {
		return ""
	}
	return *v
}

// DashboardRows renders the summary as label/value pairs followed by the
// status histogram.
func DashboardRows(s core.Summary) [][]any {
	rows := [][]any{
		{"Generated", stamp(s.GeneratedAt)},
		{"Payments", s.Count},
		{"Open", s.OpenCount},
		{"Total due", s.TotalDue},
		{"Total paid", s.TotalPaid},
		{"Total unpaid", s.TotalUnpaid},
		{"Health %", orBlank(s.HealthPercent)},
		{"Health", orBlank(s.Health)},
		{"Week", s.Week.Start.Format("02/01/2006") + " - " + s.Week.End.Format("02/01/2006")},
		{"Week unpaid", s.Week.UnpaidTotal},
		{"Week progress %", orBlank(s.Week.Progress)},
		{"Month unpaid", s.Month.UnpaidTotal},
		{"Month progress %", orBlank(s.Month.Progress)},
		{},
		{"Status", "Count"},
	}
	for _, b := range s.Histogram {
		rows = append(rows, []any{string(b.Status), b.Count})
	}
	return rows
}

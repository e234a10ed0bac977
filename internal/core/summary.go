package core

import "time"

const (
	HealthGood         HealthLevel = "good"
	HealthSatisfactory HealthLevel = "satisfactory"
	HealthBad          HealthLevel = "bad"
)

type (
	HealthLevel string

	// StatusCount is one histogram bucket.
	StatusCount struct {
		Status Status `json:"status" yaml:"status"`
		Count  int    `json:"count" yaml:"count"`
	}

	// Window summarizes the unpaid payments due in a week or month.
	// Progress is nil when nothing is unpaid.
	Window struct {
		Start       time.Time `json:"start" yaml:"start"`
		End         time.Time `json:"end" yaml:"end"`
		UnpaidTotal float64   `json:"unpaidTotal" yaml:"unpaidTotal"`
		Progress    *float64  `json:"progress" yaml:"progress"`
	}

	// Summary is the dashboard view of a snapshot at a given instant.
	// Undefined ratios are nil rather than NaN.
	Summary struct {
		GeneratedAt   time.Time     `json:"generatedAt" yaml:"generatedAt"`
		Count         int           `json:"count" yaml:"count"`
		OpenCount     int           `json:"openCount" yaml:"openCount"`
		TotalDue      float64       `json:"totalDue" yaml:"totalDue"`
		TotalPaid     float64       `json:"totalPaid" yaml:"totalPaid"`
		TotalUnpaid   float64       `json:"totalUnpaid" yaml:"totalUnpaid"`
		HealthPercent *float64      `json:"healthPercent" yaml:"healthPercent"`
		Health        *HealthLevel  `json:"health" yaml:"health"`
		Week          Window        `json:"week" yaml:"week"`
		Month         Window        `json:"month" yaml:"month"`
		Histogram     []StatusCount `json:"histogram" yaml:"histogram"`
	}
)

func sumWhere(payments []Payment, keep func(Payment) bool) Money {
	var total Money
	for _, p := range payments {
		if keep(p) {
			total = total.Add(p.AmountMoney())
		}
	}
	return total
}

func isUnpaid(p Payment) bool { return !p.IsPaid() }

// TotalDue sums every payment regardless of status.
func TotalDue(payments []Payment) Money {
	return sumWhere(payments, func(Payment) bool { return true })
}

func TotalPaid(payments []Payment) Money {
	return sumWhere(payments, Payment.IsPaid)
}

func TotalUnpaid(payments []Payment) Money {
	return sumWhere(payments, isUnpaid)
}

// HealthPercent returns paid as a percentage of due. ok is false when
// nothing is due.
func HealthPercent(due, paid Money) (pct float64, ok bool) {
	if due.Cents == 0 {
		return 0, false
	}
	return float64(paid.Cents) / float64(due.Cents) * 100, true
}

// HealthLevelOf classifies the paid-vs-due ratio: 100% or more is good,
// 75% up to 100% is satisfactory, anything lower is bad. ok is false when
// nothing is due.
func HealthLevelOf(due, paid Money) (HealthLevel, bool) {
	if due.Cents == 0 {
		return "", false
	}
	// integer comparisons keep the 75% boundary exact
	switch {
	case paid.Cents >= due.Cents:
		return HealthGood, true
	case paid.Cents*4 >= due.Cents*3:
		return HealthSatisfactory, true
	default:
		return HealthBad, true
	}
}

func CountByStatus(payments []Payment, status Status) int {
	n := 0
	for _, p := range payments {
		if p.Status == status {
			n++
		}
	}
	return n
}

// OpenCount counts payments that are neither paid nor future.
func OpenCount(payments []Payment) int {
	n := 0
	for _, p := range payments {
		if !p.IsPaid() && p.Status != StatusFuture {
			n++
		}
	}
	return n
}

// StartOfWeek returns midnight of the Sunday starting d's week, in d's location.
func StartOfWeek(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day-int(d.Weekday()), 0, 0, 0, 0, d.Location())
}

// EndOfWeek returns the last millisecond of the Saturday ending d's week.
func EndOfWeek(d time.Time) time.Time {
	s := StartOfWeek(d)
	return time.Date(s.Year(), s.Month(), s.Day()+6, 23, 59, 59, int(999*time.Millisecond), s.Location())
}

// StartOfMonth and EndOfMonth bound now's calendar month.
func StartOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
}

func EndOfMonth(d time.Time) time.Time {
	return StartOfMonth(d).AddDate(0, 1, 0).Add(-time.Millisecond)
}

// IsDueThisWeek reports whether dueAt lies inside now's week, bounds included.
func IsDueThisWeek(dueAt, now time.Time) bool {
	due := dueAt.In(now.Location())
	return !due.Before(StartOfWeek(now)) && !due.After(EndOfWeek(now))
}

// IsDueThisMonth reports whether dueAt falls in now's calendar month and year.
func IsDueThisMonth(dueAt, now time.Time) bool {
	due := dueAt.In(now.Location())
	return due.Year() == now.Year() && due.Month() == now.Month()
}

func DueThisWeekUnpaidTotal(payments []Payment, now time.Time) Money {
	return sumWhere(payments, func(p Payment) bool {
		return isUnpaid(p) && IsDueThisWeek(p.DueAt, now)
	})
}

func DueThisMonthUnpaidTotal(payments []Payment, now time.Time) Money {
	return sumWhere(payments, func(p Payment) bool {
		return isUnpaid(p) && IsDueThisMonth(p.DueAt, now)
	})
}

// Progress computes 100 - ((unpaid - window) / unpaid * 100). ok is false
// when nothing is unpaid.
func Progress(unpaid, window Money) (float64, bool) {
	if unpaid.Cents == 0 {
		return 0, false
	}
	return 100 - (float64(unpaid.Cents-window.Cents) / float64(unpaid.Cents) * 100), true
}

func WeekProgress(payments []Payment, now time.Time) (float64, bool) {
	return Progress(TotalUnpaid(payments), DueThisWeekUnpaidTotal(payments, now))
}

func MonthProgress(payments []Payment, now time.Time) (float64, bool) {
	return Progress(TotalUnpaid(payments), DueThisMonthUnpaidTotal(payments, now))
}

// StatusHistogram counts payments per status in chart order.
func StatusHistogram(payments []Payment) []StatusCount {
	out := make([]StatusCount, 0, len(Statuses))
	for _, s := range Statuses {
		out = append(out, StatusCount{Status: s, Count: CountByStatus(payments, s)})
	}
	return out
}

func optional[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}

// Summarize computes every dashboard metric for payments at now.
func Summarize(payments []Payment, now time.Time) Summary {
	due := TotalDue(payments)
	paid := TotalPaid(payments)
	unpaid := TotalUnpaid(payments)
	week := DueThisWeekUnpaidTotal(payments, now)
	month := DueThisMonthUnpaidTotal(payments, now)

	pct, pctOK := HealthPercent(due, paid)
	level, levelOK := HealthLevelOf(due, paid)
	weekProgress, weekOK := Progress(unpaid, week)
	monthProgress, monthOK := Progress(unpaid, month)

	return Summary{
		GeneratedAt:   now,
		Count:         len(payments),
		OpenCount:     OpenCount(payments),
		TotalDue:      due.Euros(),
		TotalPaid:     paid.Euros(),
		TotalUnpaid:   unpaid.Euros(),
		HealthPercent: optional(pct, pctOK),
		Health:        optional(level, levelOK),
		Week: Window{
			Start:       StartOfWeek(now),
			End:         EndOfWeek(now),
			UnpaidTotal: week.Euros(),
			Progress:    optional(weekProgress, weekOK),
		},
		Month: Window{
			Start:       StartOfMonth(now),
			End:         EndOfMonth(now),
			UnpaidTotal: month.Euros(),
			Progress:    optional(monthProgress, monthOK),
		},
		Histogram: StatusHistogram(payments),
	}
}

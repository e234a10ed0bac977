package core

import "time"

// DeriveStatus computes the status of an unpaid payment at now.
//
// The first branch compares weekday indexes, not calendar dates: a payment due
// on the same weekday one week out is pending, not future. Weekdays are taken
// in now's location. Paid is never returned.
func DeriveStatus(dueAt, now time.Time) Status {
	due := dueAt.In(now.Location())
	switch {
	case due.Weekday() == now.Weekday() && !now.After(due):
		return StatusPending
	case now.After(due):
		return StatusLate
	default:
		return StatusFuture
	}
}

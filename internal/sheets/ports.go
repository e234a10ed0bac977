package sheets

import (
	"context"

	"paymanager/internal/core"
)

// SnapshotWriter mirrors the whole payment collection and its dashboard
// somewhere outside the store. Every call replaces what was written before.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, payments []core.Payment, summary core.Summary) error
}

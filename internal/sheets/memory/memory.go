package memory

import (
	"context"
	"sync"

	"paymanager/internal/core"
	"paymanager/internal/sheets"
)

// Snapshot is one recorded write.
type Snapshot struct {
	Payments []core.Payment
	Summary  core.Summary
}

// Recorder keeps mirrored snapshots in memory.
type Recorder struct {
	mu     sync.Mutex
	writes []Snapshot
	err    error
}

func New() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent writes return err. Nil restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) WriteSnapshot(_ context.Context, payments []core.Payment, summary core.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, Snapshot{
		Payments: append([]core.Payment(nil), payments...),
		Summary:  summary,
	})
	return nil
}

// Last returns the most recent snapshot and whether one exists.
func (r *Recorder) Last() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.writes) == 0 {
		return Snapshot{}, false
	}
	return r.writes[len(r.writes)-1], true
}

func (r *Recorder) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

var _ sheets.SnapshotWriter = (*Recorder)(nil)

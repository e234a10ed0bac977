package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymanager/internal/core"
)

func TestRecorder(t *testing.T) {
	r := New()
	_, ok := r.Last()
	assert.False(t, ok)

	ps := []core.Payment{{Name: "Rent"}}
	require.NoError(t, r.WriteSnapshot(context.Background(), ps, core.Summary{Count: 1}))
	ps[0].Name = "mutated"

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "Rent", last.Payments[0].Name)
	assert.Equal(t, 1, last.Summary.Count)

	boom := errors.New("quota")
	r.FailWith(boom)
	assert.ErrorIs(t, r.WriteSnapshot(context.Background(), nil, core.Summary{}), boom)
	assert.Equal(t, 1, r.Writes())
}

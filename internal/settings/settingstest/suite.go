// Package settingstest holds the behaviour every settings.Store must share.
package settingstest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paymanager/internal/settings"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) settings.Store) {
	t.Helper()
	ctx := context.Background()

	open := func(t *testing.T) settings.Store {
		s := newStore(t)
		require.NoError(t, s.Init(ctx))
		require.NoError(t, s.Init(ctx), "init must be idempotent")
		return s
	}

	t.Run("ping", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Ping(ctx))
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, s.Ping(canceled))
	})

	t.Run("create and get", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Create(ctx, "rent", `{"a":1}`))
		v, err := s.Get(ctx, "rent")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, v)
	})

	t.Run("create duplicate keeps original", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Create(ctx, "rent", "first"))
		err := s.Create(ctx, "rent", "second")
		assert.ErrorIs(t, err, settings.ErrDuplicateKey)
		v, err := s.Get(ctx, "rent")
		require.NoError(t, err)
		assert.Equal(t, "first", v)
	})

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, settings.ErrNotFound)
	})

	t.Run("save upserts", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, "rent", "one"))
		require.NoError(t, s.Save(ctx, "rent", "two"))
		v, err := s.Get(ctx, "rent")
		require.NoError(t, err)
		assert.Equal(t, "two", v)
	})

	t.Run("update", func(t *testing.T) {
		s := open(t)
		assert.ErrorIs(t, s.Update(ctx, "rent", "x"), settings.ErrNotFound)
		require.NoError(t, s.Create(ctx, "rent", "one"))
		require.NoError(t, s.Update(ctx, "rent", "two"))
		v, err := s.Get(ctx, "rent")
		require.NoError(t, err)
		assert.Equal(t, "two", v)
	})

	t.Run("get all ordered by key", func(t *testing.T) {
		s := open(t)
		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		require.NoError(t, s.Create(ctx, "water", "3"))
		require.NoError(t, s.Create(ctx, "gym", "1"))
		require.NoError(t, s.Create(ctx, "rent", "2"))
		all, err = s.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []settings.Entry{
			{Key: "gym", Value: "1"},
			{Key: "rent", Value: "2"},
			{Key: "water", Value: "3"},
		}, all)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Create(ctx, "rent", "1"))
		require.NoError(t, s.Delete(ctx, "rent"))
		_, err := s.Get(ctx, "rent")
		assert.ErrorIs(t, err, settings.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "rent"), settings.ErrNotFound)
	})

	t.Run("delete all", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Create(ctx, "a-key", "1"))
		require.NoError(t, s.Create(ctx, "b-key", "2"))
		require.NoError(t, s.DeleteAll(ctx))
		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		require.NoError(t, s.Create(ctx, "a-key", "3"))
	})
}

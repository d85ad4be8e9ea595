package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sumup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumup.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	board := host.BoardScope("board-1")

	fields := []domain.Field{
		{ID: "f1", Name: "Points", Created: time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, s.Set(ctx, board, host.Shared, domain.FieldsKey, fields))

	var got []domain.Field
	found, err := s.Get(ctx, board, host.Shared, domain.FieldsKey, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, fields, got)
}

func TestStore_Overwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	card := host.CardScope("card-1")

	require.NoError(t, s.Set(ctx, card, host.Shared, domain.FieldValuesKey, domain.ValueMap{"f1": "1"}))
	require.NoError(t, s.Set(ctx, card, host.Shared, domain.FieldValuesKey, domain.ValueMap{"f1": "2"}))

	var values domain.ValueMap
	_, err := s.Get(ctx, card, host.Shared, domain.FieldValuesKey, &values)
	require.NoError(t, err)
	assert.Equal(t, "2", values["f1"], "last write wins")

	_, ok, err := s.UpdatedAt(ctx, card, host.Shared, domain.FieldValuesKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_MissingAndRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	card := host.CardScope("card-1")

	var values domain.ValueMap
	found, err := s.Get(ctx, card, host.Shared, domain.FieldValuesKey, &values)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, card, host.Shared, domain.FieldValuesKey, domain.ValueMap{"f1": 1}))
	require.NoError(t, s.Remove(ctx, card, host.Shared, domain.FieldValuesKey))

	found, err = s.Get(ctx, card, host.Shared, domain.FieldValuesKey, &values)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_ScopesAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, host.CardScope("a"), host.Shared, "k", "card"))
	require.NoError(t, s.Set(ctx, host.BoardScope("a"), host.Shared, "k", "board"))

	var v string
	_, err := s.Get(ctx, host.CardScope("a"), host.Shared, "k", &v)
	require.NoError(t, err)
	assert.Equal(t, "card", v)

	_, err = s.Get(ctx, host.BoardScope("a"), host.Shared, "k", &v)
	require.NoError(t, err)
	assert.Equal(t, "board", v)
}

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFileStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewJSONFileStore(dir, "bob")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bob_cached_messages.json"), store.Path())

	c, err := New(ctx, store, logging.Nop())
	require.NoError(t, err)
	c.Add(ctx, "general", "first")
	c.Add(ctx, "general", "second")
	c.Add(ctx, "random", "elsewhere")

	// A fresh process reads the same file.
	store2, err := NewJSONFileStore(dir, "bob")
	require.NoError(t, err)
	c2, err := New(ctx, store2, logging.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, c2.Pending("general"))
	assert.Equal(t, []string{"elsewhere"}, c2.Pending("random"))
	assert.Equal(t, []string{"general", "random"}, c2.Channels())
}

func TestJSONFileStore_MissingAndEmptyFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewJSONFileStore(dir, "carol")
	require.NoError(t, err)
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, os.WriteFile(store.Path(), nil, 0o600))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, os.WriteFile(store.Path(), []byte("{broken"), 0o600))
	_, err = store.Load(ctx)
	assert.Error(t, err)
}

func TestJSONFileStore_RejectsUsernamesOutsideDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "cache")

	for _, name := range []string{"", ".", "..", "../x", "a/../../x", "a/b", `..\x`, "x\x00y"} {
		t.Run(name, func(t *testing.T) {
			_, err := NewJSONFileStore(dir, name)
			assert.ErrorIs(t, err, common.ErrRequest)
			_, err = FileName(name)
			assert.ErrorIs(t, err, common.ErrRequest)
		})
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "a rejected name must not create the cache dir")

	for _, name := range []string{"bob", "guest-a1b2c3", "dien.nguyen", "o'brien"} {
		store, err := NewJSONFileStore(dir, name)
		require.NoError(t, err, name)
		assert.Equal(t, dir, filepath.Dir(store.Path()))
	}
}

func TestCache_RemoveKeepsLaterEntries(t *testing.T) {
	ctx := context.Background()
	store, err := NewJSONFileStore(t.TempDir(), "bob")
	require.NoError(t, err)
	c, err := New(ctx, store, logging.Nop())
	require.NoError(t, err)

	c.Add(ctx, "general", "a")
	c.Add(ctx, "general", "b")
	replayed := c.Pending("general")
	c.Add(ctx, "general", "c")

	c.Remove(ctx, "general", len(replayed))
	assert.Equal(t, []string{"c"}, c.Pending("general"))

	c.Remove(ctx, "general", 1)
	assert.Empty(t, c.Pending("general"))
	assert.Empty(t, c.Channels())

	// Removing again is a no-op.
	c.Remove(ctx, "general", 1)
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestCache_PendingIsACopy(t *testing.T) {
	ctx := context.Background()
	store, err := NewJSONFileStore(t.TempDir(), "bob")
	require.NoError(t, err)
	c, err := New(ctx, store, logging.Nop())
	require.NoError(t, err)

	c.Add(ctx, "general", "a")
	p := c.Pending("general")
	p[0] = "changed"

	assert.Equal(t, []string{"a"}, c.Pending("general"))
}

type brokenStore struct{ saves int }

func (b *brokenStore) Load(context.Context) (map[string][]string, error) { return nil, nil }
func (b *brokenStore) Save(context.Context, map[string][]string) error {
	b.saves++
	return errors.New("disk full")
}

func TestCache_WriteFailuresDoNotFailAdd(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{}
	c, err := New(ctx, store, logging.Nop())
	require.NoError(t, err)

	c.Add(ctx, "general", "kept in memory")

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, []string{"kept in memory"}, c.Pending("general"))
}

type failingLoad struct{}

func (failingLoad) Load(context.Context) (map[string][]string, error) {
	return nil, errors.New("unreadable")
}
func (failingLoad) Save(context.Context, map[string][]string) error { return nil }

func TestNew_LoadErrorIsReturned(t *testing.T) {
	_, err := New(context.Background(), failingLoad{}, logging.Nop())
	assert.Error(t, err)
}

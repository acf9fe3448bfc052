package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewStore(client)
}

func TestStore_Aside(t *testing.T) {
	mr, store := newStore(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *item) func() error {
		return func() error {
			calls++
			*dest = item{ID: 7, Name: "mow lawn"}
			return nil
		}
	}

	var first item
	require.NoError(t, store.Aside(ctx, JobKey(7), &first, time.Minute, fetch(&first)))
	assert.Equal(t, "mow lawn", first.Name)
	assert.True(t, mr.Exists("job:7"))

	var second item
	require.NoError(t, store.Aside(ctx, JobKey(7), &second, time.Minute, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	store.Invalidate(ctx, JobKey(7))
	assert.False(t, mr.Exists("job:7"))

	var third item
	require.NoError(t, store.Aside(ctx, JobKey(7), &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestStore_AsidePropagatesFetchError(t *testing.T) {
	mr, store := newStore(t)

	var dest item
	err := store.Aside(context.Background(), JobKey(1), &dest, time.Minute, func() error {
		return errors.New("not found")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("job:1"))
}

func TestStore_NilClientIsNoop(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	found, err := store.GetJSON(ctx, "k", &item{})
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, store.SetJSON(ctx, "k", item{}, time.Minute))
	store.Invalidate(ctx, "k")

	var dest item
	require.NoError(t, store.Aside(ctx, "k", &dest, time.Minute, func() error {
		dest.ID = 1
		return nil
	}))
	assert.Equal(t, uint(1), dest.ID)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client := Connect(context.Background(), mr.Addr())
	require.NotNil(t, client)
	_ = client.Close()

	assert.Nil(t, Connect(context.Background(), ""))
	assert.Nil(t, Connect(context.Background(), "redis://%zz"))
}

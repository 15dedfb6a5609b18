package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, time.Hour), mr
}

func TestLoad_MissingSessionReturnsEmptyCart(t *testing.T) {
	store, _ := setupTestRedis(t)

	c, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestSaveLoad_RoundTripKeepsPriceSnapshot(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	c := New()
	require.NoError(t, c.Add(product(7, 1299), 3, false))
	require.NoError(t, store.Save(ctx, "sess-1", c))
	assert.False(t, c.Modified())
	assert.True(t, mr.Exists("cart:sess-1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:sess-1"))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	assert.True(t, decimal.RequireFromString("38.97").Equal(loaded.Total()))
}

func TestSave_EmptyCartDeletesKey(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	c := New()
	require.NoError(t, c.Add(product(1, 100), 1, false))
	require.NoError(t, store.Save(ctx, "sess-2", c))

	c.Clear()
	require.NoError(t, store.Save(ctx, "sess-2", c))
	assert.False(t, mr.Exists("cart:sess-2"))
}

func TestLoad_InvalidJSON(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:bad", "{not json"))

	_, err := store.Load(context.Background(), "bad")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestDelete(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:gone", "{}"))

	require.NoError(t, store.Delete(context.Background(), "gone"))
	assert.False(t, mr.Exists("cart:gone"))
}

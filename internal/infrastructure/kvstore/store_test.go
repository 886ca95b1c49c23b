package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a Redis store on top of it
func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedis(client, ttl)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return store, mr, cleanup
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "vaarahi:session:a:cart", "[]"))
	require.NoError(t, s.Set(ctx, "vaarahi:session:a:vaarahiCart", "[1]"))
	require.NoError(t, s.Set(ctx, "vaarahi:session:b:cart", "[2]"))
	require.NoError(t, s.Set(ctx, "vaarahi:vaarahiUsers", "[]"))

	v, err := s.Get(ctx, "vaarahi:session:a:vaarahiCart")
	require.NoError(t, err)
	assert.Equal(t, "[1]", v)

	require.NoError(t, s.Set(ctx, "vaarahi:session:a:vaarahiCart", "[3]"))
	v, err = s.Get(ctx, "vaarahi:session:a:vaarahiCart")
	require.NoError(t, err)
	assert.Equal(t, "[3]", v)

	keys, err := s.Keys(ctx, "vaarahi:session:")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"vaarahi:session:a:cart",
		"vaarahi:session:a:vaarahiCart",
		"vaarahi:session:b:cart",
	}, keys)

	require.NoError(t, s.Delete(ctx, "vaarahi:session:a:cart", "vaarahi:session:b:cart"))
	keys, err = s.Keys(ctx, "vaarahi:session:")
	require.NoError(t, err)
	assert.Equal(t, []string{"vaarahi:session:a:vaarahiCart"}, keys)

	require.NoError(t, s.Delete(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	store, _, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	exerciseStore(t, store)
}

func TestRedisStore_AppliesTTL(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t, time.Hour)
	defer cleanup()

	require.NoError(t, store.Set(context.Background(), "k", "v"))
	assert.Equal(t, time.Hour, mr.TTL("k"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeyspace(t *testing.T) {
	ks := NewKeyspace("shop:")

	key := ks.Session("abc-123", KeyCart)
	assert.Equal(t, "shop:session:abc-123:vaarahiCart", key)

	sessionID, name, ok := ks.SplitSession(key)
	require.True(t, ok)
	assert.Equal(t, "abc-123", sessionID)
	assert.Equal(t, KeyCart, name)

	_, _, ok = ks.SplitSession(ks.Global(KeyUsers))
	assert.False(t, ok)

	assert.Equal(t, "vaarahi:payment:order:order_1", NewKeyspace("").ProviderOrder("order_1"))
}

func TestGetJSON_CorruptValue(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "{not json"))

	var dest []int
	err := GetJSON(ctx, s, "k", &dest)

	var corrupt *CorruptValueError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "k", corrupt.Key)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\_b\%c\\`, escapeLike(`a_b%c\`))
}

package cart

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaarahi/storefront/internal/domain/pricing"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
)

var testKeys = kvstore.NewKeyspace("test")

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T, kv kvstore.Store) *Store {
	t.Helper()
	st := NewStore("s1", kv, testKeys, quietLogger())
	require.NoError(t, st.Load(context.Background()))
	return st
}

var (
	chair = LineItem{ID: "comfort-chair", Name: "Comfort Chair", Price: 98.85, Image: "chair.jpg"}
	table = LineItem{ID: "short-table", Name: "Short Table", Price: 119.99, Image: "table.jpg"}
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"comfort-chair": "comfort-chair",
		"baby-dress":    "baby-dress",
		"short-table":   "short-table",
		"Lamp-Blue-XL":  "lamp",
		"SOFA":          "sofa",
		"":              "",
		"  vase  ":      "vase",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeID(in), in)
	}
}

func TestParsePrice(t *testing.T) {
	accepted := map[interface{}]float64{
		98.85:       98.85,
		"$98.85":    98.85,
		"₹1,299":    1299,
		"Rs. 99":    99,
		"Rs.99.50":  99.5,
		"INR 450":   450,
		"450 INR":   450,
		" 12 ":      12,
		".5":        0.5,
		"$0":        0,
	}
	for in, want := range accepted {
		got, ok := ParsePrice(in)
		if assert.True(t, ok, "%v", in) {
			assert.InDelta(t, want, got, 1e-9, "%v", in)
		}
	}

	for _, in := range []interface{}{"-5", "$-5", "₹ -1,000", -3.0, "free", "", "1.2.3", math.Inf(1), nil, true} {
		_, ok := ParsePrice(in)
		assert.False(t, ok, "%v", in)
	}
}

func TestParseQuantity(t *testing.T) {
	assert.Equal(t, 3, ParseQuantity(3.0))
	assert.Equal(t, 4, ParseQuantity("4"))
	assert.Equal(t, 1, ParseQuantity(0.0))
	assert.Equal(t, 1, ParseQuantity(-4.0))
	assert.Equal(t, 1, ParseQuantity("abc"))
	assert.Equal(t, 1, ParseQuantity(nil))
}

func TestAddItem_MergesByNormalizedID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, kvstore.NewMemory())

	require.NoError(t, st.AddItem(ctx, LineItem{ID: "lamp-blue", Name: "Lamp", Price: 10}, 1))
	require.NoError(t, st.AddItem(ctx, LineItem{ID: "LAMP-red", Name: "Lamp", Price: 10}, 2))

	items := st.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "lamp", items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestAddItem_DefaultsQuantity(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, kvstore.NewMemory())

	require.NoError(t, st.AddItem(ctx, chair, 0))
	assert.Equal(t, 1, st.Count())
}

func TestAddItem_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	st := newTestStore(t, kv)
	require.NoError(t, st.AddItem(ctx, chair, 1))

	bad := []LineItem{
		{ID: "x", Name: "NaN", Price: math.NaN()},
		{ID: "x", Name: "Inf", Price: math.Inf(1)},
		{ID: "", Name: "no id", Price: 5},
		{ID: "x", Name: "negative", Price: -1},
	}
	for _, item := range bad {
		err := st.AddItem(ctx, item, 1)
		assert.ErrorIs(t, err, ErrInvalidItem, item.Name)
	}

	assert.Len(t, st.Items(), 1)

	reloaded := newTestStore(t, kv)
	assert.Equal(t, st.Items(), reloaded.Items())
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, kvstore.NewMemory())
	require.NoError(t, st.AddItem(ctx, chair, 1))
	require.NoError(t, st.AddItem(ctx, table, 2))

	require.NoError(t, st.RemoveItem(ctx, 5))
	require.NoError(t, st.RemoveItem(ctx, -1))
	assert.Len(t, st.Items(), 2)

	require.NoError(t, st.RemoveItem(ctx, 0))
	items := st.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "short-table", items[0].ID)
}

func TestUpdateQuantity_ClampsToOne(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, kvstore.NewMemory())
	require.NoError(t, st.AddItem(ctx, chair, 3))

	require.NoError(t, st.UpdateQuantity(ctx, 0, 0))
	assert.Equal(t, 1, st.Items()[0].Quantity)

	require.NoError(t, st.UpdateQuantity(ctx, 0, -4))
	assert.Equal(t, 1, st.Items()[0].Quantity)

	require.NoError(t, st.UpdateQuantity(ctx, 0, 7))
	assert.Equal(t, 7, st.Items()[0].Quantity)

	require.NoError(t, st.UpdateQuantity(ctx, 3, 2))
	assert.Equal(t, 7, st.Count())
}

func TestPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	st := newTestStore(t, kv)

	require.NoError(t, st.AddItem(ctx, chair, 1))
	require.NoError(t, st.AddItem(ctx, table, 2))
	_, err := st.ApplyCoupon(ctx, "vaarahi")
	require.NoError(t, err)

	reloaded := newTestStore(t, kv)
	assert.Equal(t, st.Items(), reloaded.Items())
	require.NotNil(t, reloaded.Coupon())
	assert.Equal(t, "VAARAHI", reloaded.Coupon().Code)
	assert.Equal(t, "304.95", reloaded.Totals().Total.StringFixed(2))
}

func TestLoad_CorruptCartResets(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set(ctx, testKeys.Session("s1", kvstore.KeyCart), "{{not json"))

	st := newTestStore(t, kv)
	assert.Empty(t, st.Items())

	raw, err := kv.Get(ctx, testKeys.Session("s1", kvstore.KeyCart))
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestLoad_FiltersMalformedEntries(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	stored := `[null, 42, {"name":"no id","price":3}, {"id":"vase","name":"Vase","price":"$12.50","quantity":"abc"},
		{"id":"comfort-chair","name":"Chair","price":98.85,"quantity":2}, {"id":"comfort-chair","price":98.85,"quantity":1}]`
	require.NoError(t, kv.Set(ctx, testKeys.Session("s1", kvstore.KeyCart), stored))

	st := newTestStore(t, kv)
	items := st.Items()
	require.Len(t, items, 2)
	assert.Equal(t, LineItem{ID: "vase", ProductID: "vase", Name: "Vase", Price: 12.5, Quantity: 1}, items[0])
	assert.Equal(t, "comfort-chair", items[1].ID)
	assert.Equal(t, 3, items[1].Quantity)

	again := newTestStore(t, kv)
	assert.Equal(t, items, again.Items())
}

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t, kvstore.NewMemory())
	require.NoError(t, st.AddItem(ctx, chair, 1))
	require.NoError(t, st.AddItem(ctx, table, 2))

	var events []EventKind
	st.Subscribe(func(_ context.Context, e Event) { events = append(events, e.Kind) })

	_, err := st.ApplyCoupon(ctx, "nope")
	assert.ErrorIs(t, err, pricing.ErrInvalidCoupon)
	assert.Nil(t, st.Coupon())

	_, err = st.ApplyCoupon(ctx, "VAARAHI")
	require.NoError(t, err)
	first := st.Totals()

	_, err = st.ApplyCoupon(ctx, " vaarahi ")
	require.NoError(t, err)
	assert.True(t, first.Total.Equal(st.Totals().Total))
	assert.Equal(t, []EventKind{EventCouponApplied}, events)

	require.NoError(t, st.RemoveCoupon(ctx))
	assert.True(t, st.Totals().Discount.IsZero())
}

func TestLock(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	st := newTestStore(t, kv)

	require.NoError(t, st.Lock(ctx))
	assert.True(t, newTestStore(t, kv).Locked())

	require.NoError(t, st.Unlock(ctx))
	assert.False(t, st.Locked())
	assert.False(t, newTestStore(t, kv).Locked())
}

func TestEventsCarryPersistedItems(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	st := newTestStore(t, kv)

	var got []Event
	st.Subscribe(func(_ context.Context, e Event) { got = append(got, e) })

	require.NoError(t, st.AddItem(ctx, chair, 2))
	require.NoError(t, st.Clear(ctx))

	require.Len(t, got, 2)
	assert.Equal(t, EventItemAdded, got[0].Kind)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, 2, got[0].Items[0].Quantity)
	assert.Equal(t, EventCleared, got[1].Kind)
	assert.Empty(t, got[1].Items)
}

func TestStoreOnRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := kvstore.NewRedis(client, 0)
	st := newTestStore(t, kv)
	require.NoError(t, st.AddItem(ctx, chair, 1))

	raw, err := mr.Get(testKeys.Session("s1", kvstore.KeyCart))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"comfort-chair","productId":"comfort-chair","name":"Comfort Chair","price":98.85,"image":"chair.jpg","quantity":1}]`, raw)
}

func TestService_OpenSharesStore(t *testing.T) {
	ctx := context.Background()
	svc := NewService(kvstore.NewMemory(), testKeys, quietLogger())

	hookCalls := 0
	svc.BeforeOpen(func(context.Context, string) error {
		hookCalls++
		return nil
	})

	a, err := svc.Open(ctx, "s1")
	require.NoError(t, err)
	b, err := svc.Open(ctx, "s1")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, hookCalls)
	assert.Equal(t, 1, svc.Live())

	_, err = svc.Open(ctx, "")
	assert.Error(t, err)
}

func TestService_SweepDropsIdleStores(t *testing.T) {
	ctx := context.Background()
	svc := NewService(kvstore.NewMemory(), testKeys, quietLogger())

	_, err := svc.Open(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, 0, svc.Sweep(time.Hour))
	assert.Equal(t, 1, svc.Sweep(-time.Second))
	assert.Equal(t, 0, svc.Live())
}

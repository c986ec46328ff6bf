package negotiation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStoreGetOrCreate(t *testing.T) {
	store := NewMemoryStore()
	key := Key{ProductID: "SKU-1", ThreadID: "buyer-a"}

	st, err := store.GetOrCreate(context.Background(), key, 1_400_000)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if st.CurrentCounter != 1_400_000 {
		t.Errorf("fresh state counter = %d, want listing price", st.CurrentCounter)
	}
	if st.Status != StatusOpen {
		t.Errorf("fresh state status = %s, want open", st.Status)
	}

	// A second call must return the existing thread, not reset it.
	st.CurrentCounter = 1_200_000
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, err := store.GetOrCreate(context.Background(), key, 1_400_000)
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if again.CurrentCounter != 1_200_000 {
		t.Errorf("existing state counter = %d, want 1200000", again.CurrentCounter)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), Key{ProductID: "nope", ThreadID: "t"})
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Get missing = %v, want ErrStateNotFound", err)
	}
}

func TestMemoryStoreSaveIsolation(t *testing.T) {
	store := NewMemoryStore()
	key := Key{ProductID: "SKU-1", ThreadID: "t1"}
	st, _ := store.GetOrCreate(context.Background(), key, 100_000)
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the caller's copy after Save must not leak into the store.
	st.CurrentCounter = 1
	got, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentCounter != 100_000 {
		t.Errorf("stored counter = %d, want 100000", got.CurrentCounter)
	}
	if got.Version == 0 {
		t.Error("Save did not bump version")
	}
}

func TestMemoryStoreRecordFactReopens(t *testing.T) {
	store := NewMemoryStore()
	key := Key{ProductID: "SKU-1", ThreadID: "t1"}
	st, _ := store.GetOrCreate(context.Background(), key, 100_000)
	st.Status = StatusEscalated
	st.PendingFactKey = "charging_port_condition"
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.RecordFact(context.Background(), key, "charging_port_condition", "no scratches"); err != nil {
		t.Fatalf("RecordFact: %v", err)
	}
	got, _ := store.Get(context.Background(), key)
	if got.Status != StatusOpen {
		t.Errorf("status after answering pending fact = %s, want open", got.Status)
	}
	if got.Facts["charging_port_condition"] != "no scratches" {
		t.Errorf("fact not recorded: %v", got.Facts)
	}

	// Re-recording the same fact is idempotent.
	if err := store.RecordFact(context.Background(), key, "charging_port_condition", "no scratches"); err != nil {
		t.Fatalf("RecordFact repeat: %v", err)
	}
	got, _ = store.Get(context.Background(), key)
	if got.Facts["charging_port_condition"] != "no scratches" {
		t.Errorf("fact changed on repeat: %v", got.Facts)
	}
}

func TestMemoryStoreEvictIdleIdempotent(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now.Add(-72 * time.Hour) }

	stale := Key{ProductID: "SKU-1", ThreadID: "old"}
	if _, err := store.GetOrCreate(context.Background(), stale, 100_000); err != nil {
		t.Fatal(err)
	}

	store.clock = func() time.Time { return now }
	fresh := Key{ProductID: "SKU-1", ThreadID: "new"}
	if _, err := store.GetOrCreate(context.Background(), fresh, 100_000); err != nil {
		t.Fatal(err)
	}

	cutoff := now.Add(-48 * time.Hour)
	evicted, err := store.EvictIdle(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("EvictIdle: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != stale {
		t.Fatalf("evicted = %v, want [%v]", evicted, stale)
	}

	// Same cutoff again evicts nothing new.
	evicted, err = store.EvictIdle(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("EvictIdle repeat: %v", err)
	}
	if len(evicted) != 0 {
		t.Fatalf("second eviction removed %v, want none", evicted)
	}

	if _, err := store.Get(context.Background(), fresh); err != nil {
		t.Errorf("fresh thread evicted: %v", err)
	}
	if _, err := store.Get(context.Background(), stale); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("stale thread still present, err = %v", err)
	}
}

func TestMemoryStoreListByProduct(t *testing.T) {
	store := NewMemoryStore()
	for _, tid := range []string{"b", "a", "c"} {
		if _, err := store.GetOrCreate(context.Background(), Key{ProductID: "SKU-1", ThreadID: tid}, 100_000); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.GetOrCreate(context.Background(), Key{ProductID: "SKU-2", ThreadID: "x"}, 100_000); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListByProduct(context.Background(), "SKU-1")
	if err != nil {
		t.Fatalf("ListByProduct: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Key.ThreadID != want {
			t.Errorf("thread[%d] = %s, want %s", i, got[i].Key.ThreadID, want)
		}
	}
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour, nil), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	key := Key{ProductID: "SKU-9", ThreadID: "buyer-z"}

	st, err := store.GetOrCreate(context.Background(), key, 2_000_000)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if st.CurrentCounter != 2_000_000 {
		t.Errorf("counter = %d, want 2000000", st.CurrentCounter)
	}

	if err := st.ApplyTurn(Turn{
		BuyerMessage: "1.5 juta?",
		Offer:        1_500_000,
		Decision:     "counter",
		CounterPrice: 1_700_000,
		Timestamp:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("ApplyTurn: %v", err)
	}
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentCounter != 1_700_000 || got.PriceTurns != 1 || len(got.Turns) != 1 {
		t.Errorf("round trip lost data: counter=%d priceTurns=%d turns=%d",
			got.CurrentCounter, got.PriceTurns, len(got.Turns))
	}
}

func TestRedisStoreListAndEvict(t *testing.T) {
	store, mr := newTestRedisStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	store.clock = func() time.Time { return base.Add(-72 * time.Hour) }
	stale := Key{ProductID: "SKU-1", ThreadID: "old"}
	if _, err := store.GetOrCreate(context.Background(), stale, 100_000); err != nil {
		t.Fatal(err)
	}

	store.clock = func() time.Time { return base }
	fresh := Key{ProductID: "SKU-1", ThreadID: "new"}
	if _, err := store.GetOrCreate(context.Background(), fresh, 100_000); err != nil {
		t.Fatal(err)
	}

	threads, err := store.ListByProduct(context.Background(), "SKU-1")
	if err != nil {
		t.Fatalf("ListByProduct: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("threads = %d, want 2", len(threads))
	}

	evicted, err := store.EvictIdle(context.Background(), base.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("EvictIdle: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != stale {
		t.Fatalf("evicted = %v, want [%v]", evicted, stale)
	}
	if _, err := store.Get(context.Background(), stale); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("stale state survived eviction, err = %v", err)
	}

	// The state key expiring out from under the index must not break listing.
	mr.FastForward(2 * time.Hour)
	threads, err = store.ListByProduct(context.Background(), "SKU-1")
	if err != nil {
		t.Fatalf("ListByProduct after expiry: %v", err)
	}
	if len(threads) != 0 {
		t.Fatalf("threads after expiry = %d, want 0", len(threads))
	}
}

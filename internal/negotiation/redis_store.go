package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore persists negotiation state in Redis. Keys carry a TTL so
// abandoned threads age out even without explicit eviction; an index sorted
// set by last-update time backs EvictIdle, and a per-product set backs
// ListByProduct.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	clock  func() time.Time
}

const defaultStateTTL = 72 * time.Hour

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("negotiation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("adol.internal.negotiation.store")
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: tracer,
		clock:  time.Now,
	}
}

var _ Store = (*RedisStore)(nil)

func stateKey(key Key) string {
	return fmt.Sprintf("negotiation:%s", key.String())
}

func productIndexKey(productID string) string {
	return fmt.Sprintf("negotiation:product:%s:threads", productID)
}

const updatedIndexKey = "negotiation:updated"

// GetOrCreate loads the state for key, creating it when absent.
func (s *RedisStore) GetOrCreate(ctx context.Context, key Key, listingPrice int64) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "negotiation.get_or_create")
	defer span.End()

	st, err := s.load(ctx, key)
	if err == nil {
		return st, nil
	}
	if err != ErrStateNotFound {
		span.RecordError(err)
		return nil, err
	}

	st = NewState(key, listingPrice, s.clock().UTC())
	if err := s.persist(ctx, st); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return st, nil
}

// Get loads existing state or returns ErrStateNotFound.
func (s *RedisStore) Get(ctx context.Context, key Key) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "negotiation.get")
	defer span.End()

	st, err := s.load(ctx, key)
	if err != nil && err != ErrStateNotFound {
		span.RecordError(err)
	}
	return st, err
}

// Save persists the state and bumps its version.
func (s *RedisStore) Save(ctx context.Context, state *State) error {
	ctx, span := s.tracer.Start(ctx, "negotiation.save")
	defer span.End()

	state.Version++
	if err := s.persist(ctx, state); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// RecordFact upserts a fact on the stored state.
func (s *RedisStore) RecordFact(ctx context.Context, key Key, factKey, value string) error {
	ctx, span := s.tracer.Start(ctx, "negotiation.record_fact")
	defer span.End()

	st, err := s.load(ctx, key)
	if err != nil {
		span.RecordError(err)
		return err
	}
	st.RecordFact(factKey, value)
	st.UpdatedAt = s.clock().UTC()
	st.Version++
	if err := s.persist(ctx, st); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ListByProduct returns every thread negotiating the given product.
func (s *RedisStore) ListByProduct(ctx context.Context, productID string) ([]*State, error) {
	ctx, span := s.tracer.Start(ctx, "negotiation.list_by_product")
	defer span.End()

	members, err := s.redis.SMembers(ctx, productIndexKey(productID)).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("negotiation: list threads: %w", err)
	}

	out := make([]*State, 0, len(members))
	for _, threadID := range members {
		st, err := s.load(ctx, Key{ProductID: productID, ThreadID: threadID})
		if err == ErrStateNotFound {
			// The state expired; drop the stale index entry.
			s.redis.SRem(ctx, productIndexKey(productID), threadID)
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// EvictIdle removes threads whose last update predates olderThan.
func (s *RedisStore) EvictIdle(ctx context.Context, olderThan time.Time) ([]Key, error) {
	ctx, span := s.tracer.Start(ctx, "negotiation.evict_idle")
	defer span.End()

	max := fmt.Sprintf("(%d", olderThan.UTC().UnixMicro())
	members, err := s.redis.ZRangeByScore(ctx, updatedIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("negotiation: scan idle threads: %w", err)
	}

	var evicted []Key
	for _, member := range members {
		key, ok := parseStateMember(member)
		if !ok {
			s.redis.ZRem(ctx, updatedIndexKey, member)
			continue
		}
		pipe := s.redis.TxPipeline()
		pipe.Del(ctx, stateKey(key))
		pipe.SRem(ctx, productIndexKey(key.ProductID), key.ThreadID)
		pipe.ZRem(ctx, updatedIndexKey, member)
		if _, err := pipe.Exec(ctx); err != nil {
			span.RecordError(err)
			return evicted, fmt.Errorf("negotiation: evict %s: %w", member, err)
		}
		evicted = append(evicted, key)
	}
	return evicted, nil
}

func (s *RedisStore) load(ctx context.Context, key Key) (*State, error) {
	data, err := s.redis.Get(ctx, stateKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("negotiation: load state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("negotiation: decode state: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) persist(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("negotiation: encode state: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, stateKey(st.Key), data, s.ttl)
	pipe.SAdd(ctx, productIndexKey(st.Key.ProductID), st.Key.ThreadID)
	pipe.Expire(ctx, productIndexKey(st.Key.ProductID), s.ttl)
	pipe.ZAdd(ctx, updatedIndexKey, redis.Z{
		Score:  float64(st.UpdatedAt.UTC().UnixMicro()),
		Member: st.Key.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("negotiation: persist state: %w", err)
	}
	return nil
}

func parseStateMember(member string) (Key, bool) {
	for i := 0; i < len(member); i++ {
		if member[i] == ':' {
			if i == 0 || i == len(member)-1 {
				return Key{}, false
			}
			return Key{ProductID: member[:i], ThreadID: member[i+1:]}, true
		}
	}
	return Key{}, false
}

package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hunters-code/adol-agents/pkg/logging"
)

// ErrVersionConflict indicates a concurrent writer updated the state between
// read and save. The dispatcher's per-key serialization makes this rare; it
// can still happen across worker deployments sharing a table.
var ErrVersionConflict = errors.New("negotiation: state version conflict")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// stateRecord is the persisted shape: the full state as a JSON document plus
// the attributes DynamoDB needs for keys, the product index and TTL.
type stateRecord struct {
	StateKey  string `dynamodbav:"stateKey"`
	ProductID string `dynamodbav:"productId"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt int64  `dynamodbav:"updatedAtMicros"`
	State     string `dynamodbav:"state"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoStore persists negotiation state to a DynamoDB table keyed by
// "productID:threadID", with a "product-index" GSI on productId. Saves are
// compare-and-set on the version attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	logger    *logging.Logger
	clock     func() time.Time
}

const productIndexName = "product-index"

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("negotiation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("negotiation: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger,
		clock:     time.Now,
	}
}

var _ Store = (*DynamoStore)(nil)

// GetOrCreate loads the state for key, creating it when absent. Creation is
// conditional on the key not existing, so two racing creators converge on a
// single record.
func (s *DynamoStore) GetOrCreate(ctx context.Context, key Key, listingPrice int64) (*State, error) {
	st, err := s.Get(ctx, key)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrStateNotFound) {
		return nil, err
	}

	st = NewState(key, listingPrice, s.clock().UTC())
	item, err := s.marshalRecord(st)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(stateKey)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			// Lost the creation race; read the winner's record.
			return s.Get(ctx, key)
		}
		return nil, fmt.Errorf("negotiation: failed to create state: %w", err)
	}
	return st, nil
}

// Get fetches state by key.
func (s *DynamoStore) Get(ctx context.Context, key Key) (*State, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"stateKey": &types.AttributeValueMemberS{Value: key.String()},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("negotiation: failed to fetch state: %w", err)
	}
	if out.Item == nil {
		return nil, ErrStateNotFound
	}
	return unmarshalRecord(out.Item)
}

// Save persists the state, bumping its version. The write is conditional on
// the stored version matching the version the state was read at.
func (s *DynamoStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return errors.New("negotiation: cannot save nil state")
	}
	readVersion := state.Version
	state.Version++

	item, err := s.marshalRecord(state)
	if err != nil {
		state.Version = readVersion
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(stateKey) OR version = :read"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":read": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", readVersion)},
		},
	})
	if err != nil {
		state.Version = readVersion
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return fmt.Errorf("%w: %s at version %d", ErrVersionConflict, state.Key, readVersion)
		}
		return fmt.Errorf("negotiation: failed to persist state: %w", err)
	}
	return nil
}

// RecordFact upserts a fact through a read-modify-write. On a version
// conflict the whole operation retries once; the fact upsert is idempotent so
// a retry cannot double-apply.
func (s *DynamoStore) RecordFact(ctx context.Context, key Key, factKey, value string) error {
	for attempt := 0; attempt < 2; attempt++ {
		st, err := s.Get(ctx, key)
		if err != nil {
			return err
		}
		st.RecordFact(factKey, value)
		st.UpdatedAt = s.clock().UTC()
		err = s.Save(ctx, st)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: recording fact %q on %s", ErrVersionConflict, factKey, key)
}

// ListByProduct queries the product GSI for all threads on a product.
func (s *DynamoStore) ListByProduct(ctx context.Context, productID string) ([]*State, error) {
	var out []*State
	var startKey map[string]types.AttributeValue
	for {
		resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(productIndexName),
			KeyConditionExpression: aws.String("productId = :pid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pid": &types.AttributeValueMemberS{Value: productID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("negotiation: failed to list threads: %w", err)
		}
		for _, item := range resp.Items {
			st, err := unmarshalRecord(item)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return out, nil
}

// EvictIdle scans for threads last updated before olderThan and deletes them.
// The table's TTL attribute handles the steady state; this exists for
// operator-driven cleanup with a tighter cutoff.
func (s *DynamoStore) EvictIdle(ctx context.Context, olderThan time.Time) ([]Key, error) {
	cutoff := olderThan.UTC().UnixMicro()
	var evicted []Key
	var startKey map[string]types.AttributeValue
	for {
		resp, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("updatedAtMicros < :cutoff"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cutoff": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cutoff)},
			},
			ProjectionExpression: aws.String("stateKey, productId"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return evicted, fmt.Errorf("negotiation: failed to scan idle threads: %w", err)
		}
		for _, item := range resp.Items {
			var rec stateRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return evicted, fmt.Errorf("negotiation: failed to decode scan item: %w", err)
			}
			key, ok := parseStateMember(rec.StateKey)
			if !ok {
				s.logger.Warn("skipping malformed state key during eviction", "state_key", rec.StateKey)
				continue
			}
			_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"stateKey": &types.AttributeValueMemberS{Value: rec.StateKey},
				},
			})
			if err != nil {
				return evicted, fmt.Errorf("negotiation: failed to evict %s: %w", rec.StateKey, err)
			}
			evicted = append(evicted, key)
		}
		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}
	return evicted, nil
}

func (s *DynamoStore) marshalRecord(st *State) (map[string]types.AttributeValue, error) {
	doc, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("negotiation: failed to encode state: %w", err)
	}
	rec := stateRecord{
		StateKey:  st.Key.String(),
		ProductID: st.Key.ProductID,
		Version:   st.Version,
		UpdatedAt: st.UpdatedAt.UTC().UnixMicro(),
		State:     string(doc),
		ExpiresAt: s.clock().Add(s.ttl).Unix(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("negotiation: failed to marshal record: %w", err)
	}
	return item, nil
}

func unmarshalRecord(item map[string]types.AttributeValue) (*State, error) {
	var rec stateRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("negotiation: failed to decode record: %w", err)
	}
	var st State
	if err := json.Unmarshal([]byte(rec.State), &st); err != nil {
		return nil, fmt.Errorf("negotiation: failed to decode state document: %w", err)
	}
	st.Version = rec.Version
	return &st, nil
}

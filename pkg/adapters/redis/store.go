package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/raysim/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Ledger implements ports.RunLedger using Redis.
// Records are JSON values; a sorted set ordered by start time indexes them.
type Ledger struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Ledger)

// WithTTL sets the expiration for run records.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		l.ttl = ttl
	}
}

// WithPrefix sets the key prefix for run records.
func WithPrefix(prefix string) Option {
	return func(l *Ledger) {
		l.prefix = prefix
	}
}

// New creates a new Redis ledger with options.
func New(address, password string, db int, opts ...Option) *Ledger {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis ledger from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Ledger {
	ledger := &Ledger{
		client: client,
		prefix: "raysim:run:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(ledger)
	}

	return ledger
}

// Client returns the underlying client, for sharing with a Locker.
func (l *Ledger) Client() *backend.Client {
	return l.client
}

func (l *Ledger) key(id string) string {
	return l.prefix + id
}

func (l *Ledger) indexKey() string {
	return l.prefix + "index"
}

// Put persists the record and indexes it by start time.
func (l *Ledger) Put(ctx context.Context, record domain.RunRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.Set(ctx, l.key(record.ID), data, l.ttl)
	pipe.ZAdd(ctx, l.indexKey(), backend.Z{
		Score:  float64(record.Started.UnixMilli()),
		Member: record.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run record to redis: %w", err)
	}
	return nil
}

// Get retrieves the record from Redis.
func (l *Ledger) Get(ctx context.Context, id string) (domain.RunRecord, error) {
	val, err := l.client.Get(ctx, l.key(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.RunRecord{}, domain.ErrRunNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("failed to get run record from redis: %w", err)
	}

	var record domain.RunRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return domain.RunRecord{}, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	return record, nil
}

// List returns the indexed records, newest first.
// Index entries whose record has expired are pruned lazily.
func (l *Ledger) List(ctx context.Context) ([]domain.RunRecord, error) {
	ids, err := l.client.ZRevRange(ctx, l.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = l.key(id)
	}
	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load run records: %w", err)
	}

	records := make([]domain.RunRecord, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var record domain.RunRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run record %s: %w", ids[i], err)
		}
		records = append(records, record)
	}

	if len(expired) > 0 {
		if err := l.client.ZRem(ctx, l.indexKey(), expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired run records: %w", err)
		}
	}
	return records, nil
}

// Delete removes the record and its index entry.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	pipe := l.client.Pipeline()
	pipe.Del(ctx, l.key(id))
	pipe.ZRem(ctx, l.indexKey(), id)

	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the redis client.
func (l *Ledger) Close() error {
	return l.client.Close()
}

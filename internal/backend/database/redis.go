package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// appendScript pushes the record onto the namespace list and indexes its position
// in one server-side step, so concurrent appends from any number of clients are
// neither lost nor interleaved.
var appendScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
	return redis.error_reply('duplicate scan id ' .. ARGV[1])
end
local n = redis.call('RPUSH', KEYS[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], n - 1)
return n
`)

// RedisDatabase keeps the collection as one list of record JSON under the namespace key.
type RedisDatabase struct {
	client   *redis.Client
	listKey  string
	indexKey string
}

func NewRedisDatabase(ctx context.Context, connectionString, namespace string) (*RedisDatabase, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, storageError("open", fmt.Errorf("invalid redis url: %w", err))
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, storageError("open", err)
	}
	return &RedisDatabase{
		client:   client,
		listKey:  namespace,
		indexKey: namespace + ":index",
	}, nil
}

func (s *RedisDatabase) Close() error {
	return s.client.Close()
}

func (s *RedisDatabase) Append(ctx context.Context, r *ScanRecord) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return storageError("append", err)
	}
	err = appendScript.Run(ctx, s.client, []string{s.listKey, s.indexKey}, r.ID, payload).Err()
	return storageError("append", err)
}

func (s *RedisDatabase) ListAll(ctx context.Context) ([]*ScanRecord, error) {
	items, err := s.client.LRange(ctx, s.listKey, 0, -1).Result()
	if err != nil {
		return nil, storageError("list", err)
	}
	records := make([]*ScanRecord, 0, len(items))
	for i, item := range items {
		var r ScanRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, storageError("list", fmt.Errorf("corrupt record at position %d: %w", i, err))
		}
		records = append(records, &r)
	}
	return records, nil
}

func (s *RedisDatabase) GetByID(ctx context.Context, id string) (*ScanRecord, error) {
	pos, err := s.client.HGet(ctx, s.indexKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("get", err)
	}
	idx, err := strconv.ParseInt(pos, 10, 64)
	if err != nil {
		return nil, storageError("get", fmt.Errorf("corrupt index entry for %s: %w", id, err))
	}
	item, err := s.client.LIndex(ctx, s.listKey, idx).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("get", err)
	}
	var r ScanRecord
	if err := json.Unmarshal([]byte(item), &r); err != nil {
		return nil, storageError("get", fmt.Errorf("corrupt record %s: %w", id, err))
	}
	return &r, nil
}

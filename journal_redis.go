package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisJournalKey = "sqs-relay:journal"

// sorted set scored by relay time, so Cleanup is a range removal
type RedisJournal struct {
	client *redis.Client
}

func NewRedisJournal(addr string) (*RedisJournal, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisJournal{client: client}, nil
}

func (r *RedisJournal) Record(ctx context.Context, entries []JournalEntry) error {
	members := make([]redis.Z, 0, len(entries))
	for _, entry := range entries {
		members = append(members, redis.Z{
			Score:  float64(entry.RelayedAt.Unix()),
			Member: fmt.Sprintf("%s/%s/%s/%s", entry.RunID, string(entry.Mode), entry.SourceQueue, entry.MessageID),
		})
	}
	return r.client.ZAdd(ctx, redisJournalKey, members...).Err()
}

func (r *RedisJournal) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).Unix()
	return r.client.ZRemRangeByScore(ctx, redisJournalKey, "-inf", fmt.Sprintf("%d", cutoff)).Err()
}

func (r *RedisJournal) Close() error {
	return r.client.Close()
}

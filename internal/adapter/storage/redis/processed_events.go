package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ProcessedEventStore implements ports.ProcessedEventStore with one key per
// gateway event id.
type ProcessedEventStore struct {
	client *goredis.Client
	prefix string
}

func NewProcessedEventStore(client *goredis.Client) *ProcessedEventStore {
	return &ProcessedEventStore{
		client: client,
		prefix: keyPrefix + "event:",
	}
}

func (s *ProcessedEventStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis event exists: %w", err)
	}
	return n == 1, nil
}

// MarkProcessed uses SET NX so only the first caller gets true.
func (s *ProcessedEventStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, s.prefix+eventID, time.Now().Unix(), goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis event mark: %w", err)
	}
	return result == "OK", nil
}

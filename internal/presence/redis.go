package presence

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const onlineSetKey = "presence:online"

// Service tracks which users currently hold an open realtime connection. It
// is a shared set in Redis so every backend instance sees the same view. The
// messaging core only ever reads it; the websocket hub writes it.
type Service struct {
	client *redis.Client
}

// Connect dials Redis using a REDIS_URL-style connection string.
func Connect(redisURL string) (*Service, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("presence: parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("presence: ping: %w", err)
	}

	return &Service{client: client}, nil
}

func (s *Service) MarkOnline(ctx context.Context, userID string) error {
	return s.client.SAdd(ctx, onlineSetKey, userID).Err()
}

func (s *Service) MarkOffline(ctx context.Context, userID string) error {
	return s.client.SRem(ctx, onlineSetKey, userID).Err()
}

func (s *Service) IsOnline(ctx context.Context, userID string) (bool, error) {
	return s.client.SIsMember(ctx, onlineSetKey, userID).Result()
}

func (s *Service) Close() error {
	return s.client.Close()
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialTimeout = 5 * time.Second

// Stream is the shared Redis Streams connection: the event feed reads
// from it and the contract registrar writes to it.
type Stream struct {
	client *redis.Client
}

// NewStream dials the Redis URL and verifies the connection with a
// bounded ping.
func NewStream(url string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Stream{client: client}, nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}

// Client exposes the underlying go-redis client for stream consumers.
func (s *Stream) Client() *redis.Client {
	return s.client
}

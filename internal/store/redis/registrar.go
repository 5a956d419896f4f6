package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

// Registrar publishes dynamic contract-registration requests to a stream
// consumed by the delivery subsystem, so newly created pools start
// producing events without a restart.
type Registrar struct {
	client *redis.Client
	stream string
}

// NewRegistrar creates a Registrar writing to the given stream.
func NewRegistrar(s *Stream, stream string) *Registrar {
	return &Registrar{client: s.Client(), stream: stream}
}

// TrackContract appends one registration request.
func (r *Registrar) TrackContract(ctx context.Context, address string) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"address": model.NormalizeAddress(address),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("track contract %s: %w", address, err)
	}
	return nil
}

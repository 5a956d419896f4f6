package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/metrics"
)

// Ledger is the accounting surface the consumer dispatches into.
type Ledger interface {
	HandleTransfer(ctx context.Context, ev event.Transfer) error
	HandleSync(ctx context.Context, ev event.Sync) error
	HandleLiquidityMint(ctx context.Context, ev event.LiquidityMint) error
	HandleLiquidityBurn(ctx context.Context, ev event.LiquidityBurn) error
	HandleSupplyMint(ctx context.Context, ev event.SupplyMint) error
	HandleSupplyBurn(ctx context.Context, ev event.SupplyBurn) error
	HandleDeposit(ctx context.Context, ev event.Deposit) error
	HandleWithdraw(ctx context.Context, ev event.Withdraw) error
	HandlePoolCreated(ctx context.Context, ev event.PoolCreated) error
	HandleAdapterAdded(ctx context.Context, ev event.AdapterAdded) error
}

const (
	readBlock = 5 * time.Second
	readCount = 64
)

// Consumer reads event envelopes from a Redis stream consumer group and
// feeds them to the ledger in stream order. Messages are acked only after
// the ledger applied them; a processing failure leaves the message pending
// so a restart replays it.
type Consumer struct {
	client   *redis.Client
	ledger   Ledger
	stream   string
	group    string
	consumer string
	logger   *slog.Logger
}

func NewConsumer(client *redis.Client, ledger Ledger, stream, group string, logger *slog.Logger) *Consumer {
	return &Consumer{
		client:   client,
		ledger:   ledger,
		stream:   stream,
		group:    group,
		consumer: "ledger-" + uuid.NewString(),
		logger:   logger.With("component", "feed", "stream", stream),
	}
}

// Run consumes until ctx is cancelled. The consumer group is created on
// entry if it does not exist yet.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.logger.Info("feed consumer started", "group", c.group, "consumer", c.consumer)

	for {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("read event stream: %w", err)
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				if err := c.process(ctx, msg); err != nil {
					// Leave the message pending: the ledger must not skip
					// events, and replay after restart is idempotent for
					// absolute writes and converges for deltas only if the
					// failed event is retried, not dropped.
					c.logger.Error("event processing failed",
						"id", msg.ID, "error", err)
					return err
				}
				if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
					return fmt.Errorf("ack %s: %w", msg.ID, err)
				}
			}
		}
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) error {
	env, err := envelopeFromMessage(msg)
	if err != nil {
		// A malformed envelope will never decode on retry; count it, ack
		// it away and keep the stream moving.
		metrics.FeedDecodeErrors.Inc()
		c.logger.Warn("dropping undecodable envelope", "id", msg.ID, "error", err)
		return c.client.XAck(ctx, c.stream, c.group, msg.ID).Err()
	}

	start := time.Now()
	err = c.dispatch(ctx, env)
	if errors.Is(err, errBadEnvelope) {
		metrics.FeedDecodeErrors.Inc()
		c.logger.Warn("dropping undecodable envelope", "id", msg.ID, "type", env.Type, "error", err)
		return c.client.XAck(ctx, c.stream, c.group, msg.ID).Err()
	}
	if err == nil {
		metrics.FeedEventsDecoded.WithLabelValues(env.Type).Inc()
		metrics.FeedHandleLatency.WithLabelValues(env.Type).Observe(time.Since(start).Seconds())
	}
	return err
}

func envelopeFromMessage(msg redis.XMessage) (*Envelope, error) {
	typ, ok := msg.Values["type"].(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("missing type field")
	}
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, fmt.Errorf("missing payload field")
	}
	return &Envelope{Type: typ, Payload: []byte(payload)}, nil
}

func (c *Consumer) dispatch(ctx context.Context, env *Envelope) error {
	switch env.Type {
	case TriggerTransfer:
		w, err := decodePayload[wireTransfer](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		value, err := parseAmount("value", w.Value)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleTransfer(ctx, event.Transfer{
			Contract: w.Contract, From: w.From, To: w.To,
			Value: value, Block: w.Block.block(),
		})

	case TriggerSync:
		w, err := decodePayload[wireSync](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		r0, err := parseAmount("reserve0", w.Reserve0)
		if err != nil {
			return badEnvelope(err)
		}
		r1, err := parseAmount("reserve1", w.Reserve1)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleSync(ctx, event.Sync{
			Contract: w.Contract, Reserve0: r0, Reserve1: r1, Block: w.Block.block(),
		})

	case TriggerLiquidityMint:
		w, err := decodePayload[wireLiquidity](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		liquidity, err := parseAmount("liquidity", w.Liquidity)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleLiquidityMint(ctx, event.LiquidityMint{
			Contract: w.Contract, Liquidity: liquidity, Block: w.Block.block(),
		})

	case TriggerLiquidityBurn:
		w, err := decodePayload[wireLiquidity](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		liquidity, err := parseAmount("liquidity", w.Liquidity)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleLiquidityBurn(ctx, event.LiquidityBurn{
			Contract: w.Contract, Liquidity: liquidity, Block: w.Block.block(),
		})

	case TriggerSupplyMint:
		w, err := decodePayload[wireSupplyMint](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		value, err := parseAmount("value", w.Value)
		if err != nil {
			return badEnvelope(err)
		}
		index, err := parseAmount("index", w.Index)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleSupplyMint(ctx, event.SupplyMint{
			Contract: w.Contract, OnBehalfOf: w.OnBehalfOf,
			Value: value, Index: index, Block: w.Block.block(),
		})

	case TriggerSupplyBurn:
		w, err := decodePayload[wireSupplyBurn](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		value, err := parseAmount("value", w.Value)
		if err != nil {
			return badEnvelope(err)
		}
		index, err := parseAmount("index", w.Index)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleSupplyBurn(ctx, event.SupplyBurn{
			Contract: w.Contract, From: w.From,
			Value: value, Index: index, Block: w.Block.block(),
		})

	case TriggerDeposit:
		w, err := decodePayload[wireVault](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		shares, err := parseAmount("shares", w.Shares)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleDeposit(ctx, event.Deposit{
			Contract: w.Contract, Pool: w.Pool, User: w.User,
			Shares: shares, Block: w.Block.block(),
		})

	case TriggerWithdraw:
		w, err := decodePayload[wireVault](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		shares, err := parseAmount("shares", w.Shares)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleWithdraw(ctx, event.Withdraw{
			Contract: w.Contract, Pool: w.Pool, User: w.User,
			Shares: shares, Block: w.Block.block(),
		})

	case TriggerPoolCreated:
		w, err := decodePayload[wirePoolCreated](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandlePoolCreated(ctx, event.PoolCreated{
			Contract: w.Contract, Pool: w.Pool,
			Token0: w.Token0, Token1: w.Token1, Block: w.Block.block(),
		})

	case TriggerAdapterAdded:
		w, err := decodePayload[wireAdapterAdded](env.Payload)
		if err != nil {
			return badEnvelope(err)
		}
		return c.ledger.HandleAdapterAdded(ctx, event.AdapterAdded{
			Contract: w.Contract, Adapter: w.Adapter, Block: w.Block.block(),
		})
	}

	return badEnvelope(fmt.Errorf("unknown trigger %q", env.Type))
}

// errBadEnvelope marks failures that retrying cannot fix.
var errBadEnvelope = errors.New("bad envelope")

func badEnvelope(err error) error {
	return fmt.Errorf("%w: %v", errBadEnvelope, err)
}

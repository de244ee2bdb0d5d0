package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/redis"
	"github.com/honeynil/AssetMarketplace/internal/repository"
	pkgerrors "github.com/honeynil/AssetMarketplace/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const (
	settlementTTL   = 24 * time.Hour
	maxRetryBackoff = 30 * time.Second
)

// errMalformed marks events that can never be settled, however often they are retried.
var errMalformed = errors.New("malformed trade event")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer settles credits between buyer and seller for every trade_settled
// event read from the trades topic. Offsets are committed only once a message
// is settled or known to be unsettleable.
type Consumer struct {
	reader       messageReader
	topic        string
	retryBackoff time.Duration
	userRepo     repository.UserRepository
	redisClient  redis.RedisClient
}

func NewConsumer(brokers []string, topic, groupID string, userRepo repository.UserRepository, redisClient redis.RedisClient) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		topic:        topic,
		retryBackoff: time.Second,
		userRepo:     userRepo,
		redisClient:  redisClient,
	}
}

// Consume blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Kafka consumer stopped", "topic", c.topic)
				return
			}
			slog.Error("failed to fetch Kafka message", "topic", c.topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key), "offset", msg.Offset)
		if !c.process(ctx, msg) {
			slog.Info("Kafka consumer stopped before settling", "topic", c.topic, "offset", msg.Offset)
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("failed to commit Kafka message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// process handles msg until it is settled or fails permanently. It retries
// transient failures with backoff and reports false if ctx ends first.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	backoff := c.retryBackoff
	for {
		err := c.handle(ctx, msg.Value)
		if err == nil {
			return true
		}
		if permanent(err) {
			slog.Error("dropping unsettleable Kafka message", "topic", msg.Topic, "key", string(msg.Key), "error", err)
			return true
		}

		slog.Warn("failed to handle Kafka message, retrying", "topic", msg.Topic, "key", string(msg.Key), "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func permanent(err error) bool {
	return errors.Is(err, errMalformed) ||
		errors.Is(err, pkgerrors.ErrInsufficientFunds) ||
		errors.Is(err, pkgerrors.ErrUserNotFound) ||
		errors.Is(err, pkgerrors.ErrInvalidPrice)
}

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var event TradeEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if event.EventType != EventTradeSettled {
		slog.Warn("skipping unknown event", "event_type", event.EventType)
		return nil
	}

	buyerID, err := uuid.Parse(event.BuyerID)
	if err != nil {
		return fmt.Errorf("%w: invalid buyer_id %q", errMalformed, event.BuyerID)
	}
	sellerID, err := uuid.Parse(event.SellerID)
	if err != nil {
		return fmt.Errorf("%w: invalid seller_id %q", errMalformed, event.SellerID)
	}
	if event.Price <= 0 {
		slog.Info("nothing to settle", "request_id", event.RequestID, "price", event.Price)
		return nil
	}

	key := fmt.Sprintf("settlement:%s", event.RequestID)
	ok, err := c.redisClient.SetNX(ctx, key, "done", settlementTTL)
	if err != nil {
		return fmt.Errorf("failed to mark settlement: %w", err)
	}
	if !ok {
		slog.Info("trade already settled", "request_id", event.RequestID)
		return nil
	}

	if err := c.userRepo.TransferCredits(ctx, buyerID, sellerID, event.Price); err != nil {
		// The key stays set only for settled trades.
		if delErr := c.redisClient.Del(ctx, key); delErr != nil {
			slog.Error("failed to release settlement key", "request_id", event.RequestID, "error", delErr)
		}
		return fmt.Errorf("failed to settle trade %s: %w", event.RequestID, err)
	}

	slog.Info("trade settled",
		"request_id", event.RequestID,
		"asset_id", event.AssetID,
		"buyer_id", event.BuyerID,
		"seller_id", event.SellerID,
		"price", event.Price)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/erain9/matchbook/pkg/messaging"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	fieldBought = "bought"
	fieldSold   = "sold"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client from options
func NewClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// Volume is the quantity a trader bought and sold
type Volume struct {
	Bought int64
	Sold   int64
}

// TradeStore is a MessageSender that records published trades in Redis.
// Trades go to a list in execution order, per-trader volume to a hash.
type TradeStore struct {
	client      *redis.Client
	tradesKey   string
	messagesKey string
	volumeKey   string
	logger      *zap.Logger
}

// NewTradeStore creates a store whose keys all start with prefix
func NewTradeStore(client *redis.Client, prefix string, logger *zap.Logger) *TradeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeStore{
		client:      client,
		tradesKey:   fmt.Sprintf("%s:trades", prefix),
		messagesKey: fmt.Sprintf("%s:messages", prefix),
		volumeKey:   fmt.Sprintf("%s:volume", prefix),
		logger:      logger,
	}
}

// SendDoneMessage records the message's trades in one transaction
func (s *TradeStore) SendDoneMessage(ctx context.Context, done *messaging.DoneMessage) error {
	entries := make([]interface{}, 0, len(done.Trades))
	for _, trade := range done.Trades {
		data, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}
		entries = append(entries, data)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.messagesKey)
		if len(entries) == 0 {
			return nil
		}
		pipe.RPush(ctx, s.tradesKey, entries...)
		for _, trade := range done.Trades {
			qty := int64(trade.Quantity)
			pipe.HIncrBy(ctx, s.traderKey(trade.Buyer), fieldBought, qty)
			pipe.HIncrBy(ctx, s.traderKey(trade.Seller), fieldSold, qty)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record done message",
			zap.Uint64("orderID", done.OrderID),
			zap.String("messageID", done.MessageID),
			zap.Error(err))
		return fmt.Errorf("failed to record trades for order %d: %w", done.OrderID, err)
	}

	s.logger.Debug("recorded done message",
		zap.Uint64("orderID", done.OrderID),
		zap.Int("trades", len(done.Trades)))
	return nil
}

// Trades returns every recorded trade in execution order
func (s *TradeStore) Trades(ctx context.Context) ([]messaging.Trade, error) {
	raw, err := s.client.LRange(ctx, s.tradesKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	trades := make([]messaging.Trade, 0, len(raw))
	for _, entry := range raw {
		var trade messaging.Trade
		if err := json.Unmarshal([]byte(entry), &trade); err != nil {
			s.logger.Warn("skipping malformed trade entry", zap.Error(err))
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// Volume returns the traded quantity of one trader
func (s *TradeStore) Volume(ctx context.Context, trader string) (Volume, error) {
	var v Volume
	fields, err := s.client.HGetAll(ctx, s.traderKey(trader)).Result()
	if err != nil {
		return v, err
	}

	if v.Bought, err = strconv.ParseInt(valueOr(fields[fieldBought]), 10, 64); err != nil {
		return v, fmt.Errorf("bad bought volume for %s: %w", trader, err)
	}
	if v.Sold, err = strconv.ParseInt(valueOr(fields[fieldSold]), 10, 64); err != nil {
		return v, fmt.Errorf("bad sold volume for %s: %w", trader, err)
	}
	return v, nil
}

// MessageCount returns how many done messages were recorded
func (s *TradeStore) MessageCount(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.messagesKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Ping checks the connection
func (s *TradeStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *TradeStore) Close() error {
	return s.client.Close()
}

func (s *TradeStore) traderKey(trader string) string {
	return fmt.Sprintf("%s:%s", s.volumeKey, trader)
}

func valueOr(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

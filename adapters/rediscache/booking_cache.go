package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

const bookingListKey = "assistant:bookings"

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	Limit    int
	TTL      time.Duration
}

// BookingCache keeps the recent bookings as a JSON list in Redis
type BookingCache struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
	logger *zap.Logger
}

var _ repositories.BookingRepository = (*BookingCache)(nil)

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewBookingCache creates a booking cache on an existing client
func NewBookingCache(client *redis.Client, opts Options, logger *zap.Logger) *BookingCache {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	return &BookingCache{
		client: client,
		limit:  limit,
		ttl:    opts.TTL,
		logger: logger,
	}
}

// Save implements repositories.BookingRepository
func (c *BookingCache) Save(ctx context.Context, booking *entities.Booking) error {
	if booking == nil {
		return errors.New("booking cannot be nil")
	}

	b, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, bookingListKey, b)
	pipe.LTrim(ctx, bookingListKey, 0, int64(c.limit-1))
	if c.ttl > 0 {
		pipe.Expire(ctx, bookingListKey, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache booking: %w", err)
	}

	c.logger.Debug("Booking cached", zap.String("bookingID", booking.ID))
	return nil
}

// List implements repositories.BookingRepository
func (c *BookingCache) List(ctx context.Context) ([]*entities.Booking, error) {
	items, err := c.client.LRange(ctx, bookingListKey, 0, int64(c.limit-1)).Result()
	if err == redis.Nil {
		return []*entities.Booking{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cached bookings: %w", err)
	}

	bookings := make([]*entities.Booking, 0, len(items))
	for _, item := range items {
		var booking entities.Booking
		if err := json.Unmarshal([]byte(item), &booking); err != nil {
			c.logger.Warn("Skipping malformed cached booking", zap.Error(err))
			continue
		}
		bookings = append(bookings, &booking)
	}
	return bookings, nil
}

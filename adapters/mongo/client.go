package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Options selects the booking cache database
type Options struct {
	URI      string
	Database string

	// ConnectTimeout bounds the initial connect and ping
	ConnectTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.URI == "" {
		o.URI = "mongodb://localhost:27017"
	}
	if o.Database == "" {
		o.Database = "voicebook"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	return o
}

// driverOptions sizes the pool for a single kiosk process: bookings are
// written one at a time and listed once at startup.
func (o Options) driverOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(o.URI).
		SetAppName("voicebook-assistant").
		SetMaxPoolSize(4).
		SetMinPoolSize(0).
		SetServerSelectionTimeout(o.ConnectTimeout / 2).
		SetConnectTimeout(o.ConnectTimeout)
}

// Client holds the connection backing the booking cache
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewClient connects and verifies the server answers before the assistant
// relies on it for bookings
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts.driverOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to booking cache: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach booking cache: %w", err)
	}

	logger.Info("Booking cache connected",
		zap.String("backend", "mongo"),
		zap.String("database", opts.Database))

	return &Client{
		client: client,
		db:     client.Database(opts.Database),
		logger: logger,
	}, nil
}

// Database is where the bookings collection lives
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Close disconnects from the booking cache
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect booking cache: %w", err)
	}
	c.logger.Info("Booking cache disconnected", zap.String("backend", "mongo"))
	return nil
}

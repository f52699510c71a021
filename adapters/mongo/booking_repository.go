package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

// BookingRepository stores bookings in the "bookings" collection
type BookingRepository struct {
	collection *mongo.Collection
	limit      int64
}

var _ repositories.BookingRepository = (*BookingRepository)(nil)

// NewBookingRepository creates a new MongoDB booking repository. List
// returns at most limit bookings; zero means 100.
func NewBookingRepository(db *mongo.Database, limit int) *BookingRepository {
	if limit <= 0 {
		limit = 100
	}
	return &BookingRepository{
		collection: db.Collection("bookings"),
		limit:      int64(limit),
	}
}

// EnsureIndexes creates the index List sorts on
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create bookings index: %w", err)
	}
	return nil
}

// Save implements repositories.BookingRepository
func (r *BookingRepository) Save(ctx context.Context, booking *entities.Booking) error {
	if booking == nil {
		return errors.New("booking cannot be nil")
	}
	if booking.ID == "" {
		return errors.New("booking ID cannot be empty")
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}

	// saving the same booking twice overwrites it
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": booking.ID},
		booking,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// List implements repositories.BookingRepository
func (r *BookingRepository) List(ctx context.Context) ([]*entities.Booking, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(r.limit)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*entities.Booking{}
	for cursor.Next(ctx) {
		var booking entities.Booking
		if err := cursor.Decode(&booking); err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		bookings = append(bookings, &booking)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return bookings, nil
}

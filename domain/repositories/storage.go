package repositories

import (
	"context"

	"github.com/voicebook/assistant/domain/entities"
)

// BookingRepository is the best-effort cache behind the booking list
type BookingRepository interface {
	Save(ctx context.Context, booking *entities.Booking) error
	// List returns cached bookings, newest first
	List(ctx context.Context) ([]*entities.Booking, error)
}

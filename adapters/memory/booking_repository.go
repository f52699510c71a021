package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

// BookingRepository keeps bookings in process memory. It is the default
// cache when neither Redis nor MongoDB is configured.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings []*entities.Booking
	limit    int
}

var _ repositories.BookingRepository = (*BookingRepository)(nil)

// NewBookingRepository creates an in-memory repository keeping at most
// limit bookings. A limit of zero keeps everything.
func NewBookingRepository(limit int) *BookingRepository {
	return &BookingRepository{limit: limit}
}

// Save implements repositories.BookingRepository
func (m *BookingRepository) Save(ctx context.Context, booking *entities.Booking) error {
	if booking == nil {
		return errors.New("booking cannot be nil")
	}
	if booking.ID == "" {
		return errors.New("booking ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bookingCopy := *booking
	m.bookings = append([]*entities.Booking{&bookingCopy}, m.bookings...)
	if m.limit > 0 && len(m.bookings) > m.limit {
		m.bookings = m.bookings[:m.limit]
	}
	return nil
}

// List implements repositories.BookingRepository
func (m *BookingRepository) List(ctx context.Context) ([]*entities.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return copies to prevent external modifications
	result := make([]*entities.Booking, len(m.bookings))
	for i, booking := range m.bookings {
		bookingCopy := *booking
		result[i] = &bookingCopy
	}
	return result, nil
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

// BookingService keeps the ordered booking list shown to the user. The
// repository is a best-effort cache; its failures never reject a booking.
type BookingService struct {
	repo      repositories.BookingRepository
	presenter repositories.Presenter
	logger    *zap.Logger

	mu       sync.RWMutex
	bookings []entities.Booking
}

// NewBookingService creates a booking list. repo may be nil.
func NewBookingService(repo repositories.BookingRepository, presenter repositories.Presenter, logger *zap.Logger) *BookingService {
	return &BookingService{
		repo:      repo,
		presenter: presenter,
		logger:    logger,
	}
}

// Load fills the list from the cache and renders it
func (s *BookingService) Load(ctx context.Context) error {
	if s.repo == nil {
		s.render()
		return nil
	}

	cached, err := s.repo.List(ctx)
	if err != nil {
		s.render()
		return fmt.Errorf("failed to load cached bookings: %w", err)
	}

	s.mu.Lock()
	s.bookings = make([]entities.Booking, 0, len(cached))
	for _, b := range cached {
		s.bookings = append(s.bookings, *b)
	}
	s.mu.Unlock()

	s.logger.Info("Loaded cached bookings", zap.Int("count", len(cached)))
	s.render()
	return nil
}

// Append adds booking to the front of the list and re-renders. Existing
// entries are never modified.
func (s *BookingService) Append(ctx context.Context, booking entities.Booking) entities.Booking {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.bookings = append([]entities.Booking{booking}, s.bookings...)
	s.mu.Unlock()

	s.logger.Info("Booking added",
		zap.String("bookingID", booking.ID),
		zap.String("customerName", booking.CustomerName),
		zap.Int("partySize", booking.PartySize),
		zap.String("createdVia", string(booking.CreatedVia)))

	s.render()

	if s.repo != nil {
		if err := s.repo.Save(ctx, &booking); err != nil {
			s.logger.Warn("Failed to cache booking", zap.String("bookingID", booking.ID), zap.Error(err))
		}
	}

	return booking
}

// CreateManual validates and appends a booking entered through the form
func (s *BookingService) CreateManual(ctx context.Context, booking entities.Booking) (entities.Booking, error) {
	booking.CreatedVia = entities.BookingSourceManualForm
	if err := booking.Validate(); err != nil {
		return entities.Booking{}, err
	}

	created := s.Append(ctx, booking)
	s.presenter.Notify("Booking created successfully!", entities.SeveritySuccess)
	return created, nil
}

// List returns a snapshot of the bookings, newest first
func (s *BookingService) List() []entities.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Booking, len(s.bookings))
	copy(out, s.bookings)
	return out
}

func (s *BookingService) render() {
	s.presenter.RenderBookings(s.List())
}

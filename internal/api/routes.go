package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/internal/websocket"
	"github.com/voicebook/assistant/usecase"
)

// ConversationController is the part of usecase.ConversationService the
// API drives
type ConversationController interface {
	Toggle(ctx context.Context) (*usecase.Flight, error)
	Stop() error
	ProcessText(ctx context.Context, transcript string) (entities.ConversationOutcome, error)
	Status() usecase.ConversationStatus
}

// BookingController is the part of usecase.BookingService the API drives
type BookingController interface {
	List() []entities.Booking
	CreateManual(ctx context.Context, booking entities.Booking) (entities.Booking, error)
}

type handler struct {
	conversation ConversationController
	bookings     BookingController
	logger       *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, conversation ConversationController, bookings BookingController, logger *zap.Logger) {
	h := &handler{
		conversation: conversation,
		bookings:     bookings,
		logger:       logger,
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voicebook-assistant",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/conversation", h.conversationStatus)
	v1.POST("/conversation/toggle", h.toggleConversation)
	v1.POST("/conversation/stop", h.stopConversation)
	v1.POST("/conversation/text", h.textConversation)

	v1.GET("/bookings", h.listBookings)
	v1.POST("/bookings", h.createBooking)

	// Presentation channel
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func (h *handler) conversationStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.conversation.Status())
}

func (h *handler) toggleConversation(c echo.Context) error {
	flight, err := h.conversation.Toggle(c.Request().Context())
	if err != nil {
		if errors.Is(err, domain.ErrConversationInFlight) {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "conversation_in_flight",
				Message: "Already processing a conversation, please wait",
			})
		}

		h.logger.Warn("Failed to toggle conversation", zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   deviceErrorCode(err),
			Message: err.Error(),
		})
	}

	resp := ConversationResponse{State: h.conversation.Status().State}
	if flight != nil {
		resp.FlightID = flight.ID
	}
	return c.JSON(http.StatusAccepted, resp)
}

func (h *handler) stopConversation(c echo.Context) error {
	if err := h.conversation.Stop(); err != nil {
		if errors.Is(err, domain.ErrNotListening) {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "not_listening",
				Message: "No recording in progress",
			})
		}

		h.logger.Error("Failed to stop conversation", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "stop_failed",
			Message: err.Error(),
		})
	}

	status := h.conversation.Status()
	return c.JSON(http.StatusAccepted, ConversationResponse{
		State:    status.State,
		FlightID: status.FlightID,
	})
}

func (h *handler) textConversation(c echo.Context) error {
	var req TextConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Transcript is required",
		})
	}

	outcome, err := h.conversation.ProcessText(c.Request().Context(), req.Transcript)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConversationInFlight):
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "conversation_in_flight",
				Message: "Already processing a conversation, please wait",
			})
		case errors.Is(err, domain.ErrEmptyTranscript):
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "missing_fields",
				Message: "Transcript is required",
			})
		}

		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "conversation_failed",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, outcome)
}

func (h *handler) listBookings(c echo.Context) error {
	return c.JSON(http.StatusOK, BookingsResponse{Bookings: h.bookings.List()})
}

func (h *handler) createBooking(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind booking request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	booking, err := h.bookings.CreateManual(c.Request().Context(), req.Booking())
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_booking",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, booking)
}

func deviceErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return "device_unavailable"
	}
	return "device_error"
}

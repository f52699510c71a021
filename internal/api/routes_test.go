package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/voicebook/assistant/domain"
	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/internal/websocket"
	"github.com/voicebook/assistant/usecase"
)

type fakeConversation struct {
	status     usecase.ConversationStatus
	toggleErr  error
	stopErr    error
	outcome    entities.ConversationOutcome
	processErr error
	transcript string
}

func (f *fakeConversation) Toggle(ctx context.Context) (*usecase.Flight, error) {
	if f.toggleErr != nil {
		return nil, f.toggleErr
	}
	f.status.State = entities.ConversationStateListening
	return nil, nil
}

func (f *fakeConversation) Stop() error {
	return f.stopErr
}

func (f *fakeConversation) ProcessText(ctx context.Context, transcript string) (entities.ConversationOutcome, error) {
	f.transcript = transcript
	return f.outcome, f.processErr
}

func (f *fakeConversation) Status() usecase.ConversationStatus {
	return f.status
}

type fakeBookings struct {
	bookings []entities.Booking
}

func (f *fakeBookings) List() []entities.Booking {
	return f.bookings
}

func (f *fakeBookings) CreateManual(ctx context.Context, booking entities.Booking) (entities.Booking, error) {
	booking.CreatedVia = entities.BookingSourceManualForm
	if err := booking.Validate(); err != nil {
		return entities.Booking{}, err
	}
	booking.ID = fmt.Sprintf("b%d", len(f.bookings)+1)
	f.bookings = append([]entities.Booking{booking}, f.bookings...)
	return booking, nil
}

func setupTestEcho(t *testing.T, conversation *fakeConversation, bookings *fakeBookings) *echo.Echo {
	logger := zaptest.NewLogger(t)
	e := echo.New()
	InitRoutes(e, websocket.NewHub(logger), conversation, bookings, logger)
	return e
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid error body %s: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	e := setupTestEcho(t, &fakeConversation{}, &fakeBookings{})

	rec := doRequest(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "voicebook-assistant") {
		t.Errorf("Unexpected body: %s", rec.Body.String())
	}
}

func TestConversationStatus(t *testing.T) {
	conversation := &fakeConversation{status: usecase.ConversationStatus{
		State:    entities.ConversationStateAwaitingExchange,
		InFlight: true,
		FlightID: "f-1",
	}}
	e := setupTestEcho(t, conversation, &fakeBookings{})

	rec := doRequest(e, http.MethodGet, "/api/v1/conversation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status usecase.ConversationStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if status.State != entities.ConversationStateAwaitingExchange || !status.InFlight || status.FlightID != "f-1" {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestToggleConversation(t *testing.T) {
	tests := []struct {
		name      string
		toggleErr error
		wantCode  int
		wantError string
	}{
		{"starts listening", nil, http.StatusAccepted, ""},
		{"busy", domain.ErrConversationInFlight, http.StatusConflict, "conversation_in_flight"},
		{"permission denied", fmt.Errorf("failed to open microphone: %w", domain.ErrPermissionDenied), http.StatusUnprocessableEntity, "permission_denied"},
		{"no device", domain.ErrDeviceUnavailable, http.StatusUnprocessableEntity, "device_unavailable"},
		{"other device error", errors.New("ffmpeg exploded"), http.StatusUnprocessableEntity, "device_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupTestEcho(t, &fakeConversation{toggleErr: tt.toggleErr}, &fakeBookings{})

			rec := doRequest(e, http.MethodPost, "/api/v1/conversation/toggle", "")
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}

			if tt.wantError != "" {
				if got := decodeError(t, rec).Error; got != tt.wantError {
					t.Errorf("Expected error %s, got %s", tt.wantError, got)
				}
				return
			}

			var resp ConversationResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Invalid body: %v", err)
			}
			if resp.State != entities.ConversationStateListening {
				t.Errorf("Expected listening, got %s", resp.State)
			}
		})
	}
}

func TestStopConversation(t *testing.T) {
	e := setupTestEcho(t, &fakeConversation{stopErr: domain.ErrNotListening}, &fakeBookings{})
	rec := doRequest(e, http.MethodPost, "/api/v1/conversation/stop", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}

	conversation := &fakeConversation{status: usecase.ConversationStatus{State: entities.ConversationStateAwaitingExchange}}
	e = setupTestEcho(t, conversation, &fakeBookings{})
	rec = doRequest(e, http.MethodPost, "/api/v1/conversation/stop", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
}

func TestTextConversation(t *testing.T) {
	booking := &entities.Booking{ID: "b1", CustomerName: "Ana", PartySize: 4}

	tests := []struct {
		name       string
		body       string
		outcome    entities.ConversationOutcome
		processErr error
		wantCode   int
	}{
		{
			name:     "booking created",
			body:     `{"transcript": "table for four, name Ana"}`,
			outcome:  entities.ConversationOutcome{Kind: entities.OutcomeBookingCreated, Reply: "Booked!", Booking: booking},
			wantCode: http.StatusOK,
		},
		{
			name:     "empty transcript",
			body:     `{"transcript": "  "}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed body",
			body:     `{"transcript": `,
			wantCode: http.StatusBadRequest,
		},
		{
			name:       "busy",
			body:       `{"transcript": "hello"}`,
			processErr: domain.ErrConversationInFlight,
			wantCode:   http.StatusConflict,
		},
		{
			name:       "transport failure",
			body:       `{"transcript": "hello"}`,
			processErr: &domain.TransportError{Status: 500, Body: "model overloaded"},
			wantCode:   http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conversation := &fakeConversation{outcome: tt.outcome, processErr: tt.processErr}
			e := setupTestEcho(t, conversation, &fakeBookings{})

			rec := doRequest(e, http.MethodPost, "/api/v1/conversation/text", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}

			if tt.wantCode == http.StatusBadGateway {
				if !strings.Contains(decodeError(t, rec).Message, "model overloaded") {
					t.Errorf("Expected transport body in message, got %s", rec.Body.String())
				}
			}

			if tt.wantCode == http.StatusOK {
				var outcome entities.ConversationOutcome
				if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
					t.Fatalf("Invalid body: %v", err)
				}
				if outcome.Kind != entities.OutcomeBookingCreated || outcome.Booking == nil || outcome.Booking.CustomerName != "Ana" {
					t.Errorf("Unexpected outcome: %+v", outcome)
				}
				if conversation.transcript != "table for four, name Ana" {
					t.Errorf("Unexpected transcript forwarded: %q", conversation.transcript)
				}
			}
		})
	}
}

func TestBookings(t *testing.T) {
	bookings := &fakeBookings{}
	e := setupTestEcho(t, &fakeConversation{}, bookings)

	rec := doRequest(e, http.MethodPost, "/api/v1/bookings", `{"customer_name": "Ben", "party_size": 3, "phone_number": "555-0100"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created entities.Booking
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if created.CreatedVia != entities.BookingSourceManualForm || created.Phone != "555-0100" {
		t.Errorf("Unexpected booking: %+v", created)
	}

	rec = doRequest(e, http.MethodPost, "/api/v1/bookings", `{"customer_name": "", "party_size": 3}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing name, got %d", rec.Code)
	}

	rec = doRequest(e, http.MethodGet, "/api/v1/bookings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var list BookingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if len(list.Bookings) != 1 || list.Bookings[0].CustomerName != "Ben" {
		t.Errorf("Unexpected bookings: %+v", list.Bookings)
	}
}

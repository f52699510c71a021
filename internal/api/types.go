package api

import "github.com/voicebook/assistant/domain/entities"

// TextConversationRequest is a transcript recognized by the caller
type TextConversationRequest struct {
	Transcript string `json:"transcript"`
}

// BookingRequest represents the manual booking form
type BookingRequest struct {
	CustomerName string `json:"customer_name"`
	PartySize    int    `json:"party_size"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	Date         string `json:"date,omitempty"`
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

func (r BookingRequest) Booking() entities.Booking {
	return entities.Booking{
		CustomerName: r.CustomerName,
		PartySize:    r.PartySize,
		Phone:        r.PhoneNumber,
		Date:         r.Date,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Notes:        r.Notes,
	}
}

// ConversationResponse acknowledges a toggle or stop request
type ConversationResponse struct {
	State    entities.ConversationState `json:"state"`
	FlightID string                     `json:"flight_id,omitempty"`
}

type BookingsResponse struct {
	Bookings []entities.Booking `json:"bookings"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

package domain

import (
	"encoding/json"

	"github.com/voicebook/assistant/domain/entities"
)

// ConversationResponse is the JSON body returned by the assistant service for
// both the audio and the text conversation endpoints.
type ConversationResponse struct {
	Transcription string          `json:"transcription"`
	AIResponse    string          `json:"aiResponse"`
	Action        string          `json:"action"`
	Booking       *BookingPayload `json:"booking,omitempty"`
	Success       *bool           `json:"success,omitempty"`
}

// BookingPayload is the wire shape of a booking proposed by the assistant
type BookingPayload struct {
	ID           string `json:"id,omitempty"`
	CustomerName string `json:"customer_name"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	PartySize    int    `json:"party_size"`
	Date         string `json:"date,omitempty"`
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// UnmarshalJSON accepts both snake_case and camelCase booking keys. The
// snake_case value wins when both are present.
func (p *BookingPayload) UnmarshalJSON(data []byte) error {
	type snakeCase BookingPayload
	var snake snakeCase
	if err := json.Unmarshal(data, &snake); err != nil {
		return err
	}

	var camel struct {
		CustomerName string `json:"customerName"`
		PhoneNumber  string `json:"phoneNumber"`
		PartySize    int    `json:"partySize"`
		StartTime    string `json:"startTime"`
		EndTime      string `json:"endTime"`
	}
	if err := json.Unmarshal(data, &camel); err != nil {
		return err
	}

	*p = BookingPayload(snake)
	if p.CustomerName == "" {
		p.CustomerName = camel.CustomerName
	}
	if p.PhoneNumber == "" {
		p.PhoneNumber = camel.PhoneNumber
	}
	if p.PartySize == 0 {
		p.PartySize = camel.PartySize
	}
	if p.StartTime == "" {
		p.StartTime = camel.StartTime
	}
	if p.EndTime == "" {
		p.EndTime = camel.EndTime
	}
	return nil
}

// TextConversationRequest carries a transcript produced by a local recognizer
type TextConversationRequest struct {
	Transcript string `json:"transcript"`
}

// HealthResponse is the payload of the assistant service liveness endpoint
type HealthResponse struct {
	Status            string `json:"status"`
	MistralConfigured bool   `json:"mistral_configured"`
	Timestamp         string `json:"timestamp"`
}

// ActionBookingCreated is the wire value signalling a created reservation
const ActionBookingCreated = "booking_created"

// Result converts the wire response to a conversation result. Unknown
// actions continue the conversation.
func (r ConversationResponse) Result() *entities.ConversationResult {
	result := &entities.ConversationResult{
		Transcript: r.Transcription,
		Reply:      r.AIResponse,
		Action:     entities.ConversationActionContinue,
	}
	if r.Action == ActionBookingCreated {
		result.Action = entities.ConversationActionBookingCreated
		if r.Booking != nil {
			result.Booking = r.Booking.Booking()
		}
	}
	return result
}

func (p BookingPayload) Booking() *entities.Booking {
	return &entities.Booking{
		ID:           p.ID,
		CustomerName: p.CustomerName,
		PartySize:    p.PartySize,
		Phone:        p.PhoneNumber,
		Date:         p.Date,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		Notes:        p.Notes,
		CreatedVia:   entities.BookingSourceAIConversation,
	}
}

package entities

import (
	"errors"
	"strings"
	"time"
)

// BookingSource records which path created a booking
type BookingSource string

const (
	BookingSourceAIConversation BookingSource = "ai_conversation"
	BookingSourceManualForm     BookingSource = "manual_form"
)

// Booking is a confirmed reservation shown in the booking list
type Booking struct {
	ID           string        `json:"id" bson:"_id"`
	CustomerName string        `json:"customer_name" bson:"customer_name"`
	PartySize    int           `json:"party_size" bson:"party_size"`
	Phone        string        `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	Date         string        `json:"date,omitempty" bson:"date,omitempty"`
	StartTime    string        `json:"start_time,omitempty" bson:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Notes        string        `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedVia   BookingSource `json:"created_via" bson:"created_via"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
}

// Validate checks the fields a manual booking form must provide
func (b *Booking) Validate() error {
	if strings.TrimSpace(b.CustomerName) == "" {
		return errors.New("customer name is required")
	}
	if b.PartySize <= 0 {
		return errors.New("party size must be positive")
	}
	if b.CreatedVia != BookingSourceAIConversation && b.CreatedVia != BookingSourceManualForm {
		return errors.New("invalid booking source")
	}
	return nil
}

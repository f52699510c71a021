package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voicebook/assistant/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Inbound message types
const (
	MessageTypeVoiceToggle      MessageType = "voice_toggle"
	MessageTypeVoiceStop        MessageType = "voice_stop"
	MessageTypeTextConversation MessageType = "text_conversation"
	MessageTypePing             MessageType = "ping"
)

// Outbound message types
const (
	MessageTypeNotification     MessageType = "notification"
	MessageTypeStatusText       MessageType = "status_text"
	MessageTypeCaptureIndicator MessageType = "capture_indicator"
	MessageTypeBusyIndicator    MessageType = "busy_indicator"
	MessageTypeBookings         MessageType = "bookings"
	MessageTypePong             MessageType = "pong"
	MessageTypeError            MessageType = "error"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage     = "invalid_message"
	ErrorCodeBusy               = "conversation_in_flight"
	ErrorCodeNotListening       = "not_listening"
	ErrorCodeConversationFailed = "conversation_failed"
	ErrorCodeUnavailable        = "unavailable"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ControlMessage is a voice_toggle or voice_stop request from a client
type ControlMessage struct {
	BaseMessage
}

// TextConversationMessage carries a transcript recognized on the client
type TextConversationMessage struct {
	BaseMessage
	Transcript string `json:"transcript"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

type NotificationMessage struct {
	BaseMessage
	Message  string            `json:"message"`
	Severity entities.Severity `json:"severity"`
}

type StatusTextMessage struct {
	BaseMessage
	Slot entities.StatusSlot `json:"slot"`
	Text string              `json:"text"`
}

type CaptureIndicatorMessage struct {
	BaseMessage
	Active bool `json:"active"`
}

type BusyIndicatorMessage struct {
	BaseMessage
	Visible bool   `json:"visible"`
	Message string `json:"message,omitempty"`
}

// BookingsMessage carries the full booking list, newest first
type BookingsMessage struct {
	BaseMessage
	Bookings []entities.Booking `json:"bookings"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for inbound WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message and returns its typed form
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeVoiceToggle, MessageTypeVoiceStop:
		return &ControlMessage{BaseMessage: base}, nil

	case MessageTypeTextConversation:
		var msg TextConversationMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid text conversation message: %w", err)
		}
		if strings.TrimSpace(msg.Transcript) == "" {
			return nil, fmt.Errorf("transcript is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

func CreateNotificationMessage(message string, severity entities.Severity) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: newBase(MessageTypeNotification),
		Message:     message,
		Severity:    severity,
	}
}

func CreateStatusTextMessage(slot entities.StatusSlot, text string) *StatusTextMessage {
	return &StatusTextMessage{
		BaseMessage: newBase(MessageTypeStatusText),
		Slot:        slot,
		Text:        text,
	}
}

func CreateCaptureIndicatorMessage(active bool) *CaptureIndicatorMessage {
	return &CaptureIndicatorMessage{
		BaseMessage: newBase(MessageTypeCaptureIndicator),
		Active:      active,
	}
}

func CreateBusyIndicatorMessage(visible bool, message string) *BusyIndicatorMessage {
	return &BusyIndicatorMessage{
		BaseMessage: newBase(MessageTypeBusyIndicator),
		Visible:     visible,
		Message:     message,
	}
}

func CreateBookingsMessage(bookings []entities.Booking) *BookingsMessage {
	if bookings == nil {
		bookings = []entities.Booking{}
	}
	return &BookingsMessage{
		BaseMessage: newBase(MessageTypeBookings),
		Bookings:    bookings,
	}
}

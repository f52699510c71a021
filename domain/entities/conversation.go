package entities

// CaptureState models the lifecycle of one microphone capture session
type CaptureState string

const (
	CaptureStateIdle       CaptureState = "idle"
	CaptureStateArmed      CaptureState = "armed"
	CaptureStateRecording  CaptureState = "recording"
	CaptureStateFinalizing CaptureState = "finalizing"
)

// ConversationState models the orchestrator lifecycle
type ConversationState string

const (
	ConversationStateIdle             ConversationState = "idle"
	ConversationStateListening        ConversationState = "listening"
	ConversationStateAwaitingExchange ConversationState = "awaiting_exchange"
	ConversationStateSpeaking         ConversationState = "speaking"
)

// AudioArtifact is the finished payload of one capture session. It is never
// modified after construction.
type AudioArtifact struct {
	data     []byte
	mimeType string
}

// NewAudioArtifact concatenates fragments in the given order
func NewAudioArtifact(fragments [][]byte, mimeType string) AudioArtifact {
	size := 0
	for _, f := range fragments {
		size += len(f)
	}
	data := make([]byte, 0, size)
	for _, f := range fragments {
		data = append(data, f...)
	}
	return AudioArtifact{data: data, mimeType: mimeType}
}

// Bytes returns a copy of the audio payload
func (a AudioArtifact) Bytes() []byte {
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out
}

func (a AudioArtifact) MimeType() string {
	return a.mimeType
}

func (a AudioArtifact) SizeBytes() int {
	return len(a.data)
}

func (a AudioArtifact) IsEmpty() bool {
	return len(a.data) == 0
}

// ConversationAction is what the assistant decided after an exchange
type ConversationAction string

const (
	ConversationActionContinue       ConversationAction = "continue"
	ConversationActionBookingCreated ConversationAction = "booking_created"
)

// ConversationResult is the structured reply of one exchange
type ConversationResult struct {
	Transcript string             `json:"transcript"`
	Reply      string             `json:"reply"`
	Action     ConversationAction `json:"action"`
	Booking    *Booking           `json:"booking,omitempty"`
}

// OutcomeKind classifies how a conversation attempt ended
type OutcomeKind string

const (
	OutcomeCompleted      OutcomeKind = "completed"
	OutcomeBookingCreated OutcomeKind = "booking_created"
	OutcomeDeviceError    OutcomeKind = "device_error"
	OutcomeCaptureError   OutcomeKind = "capture_error"
	OutcomeTransportError OutcomeKind = "transport_error"
)

// ConversationOutcome is the observable end result of one conversation attempt
type ConversationOutcome struct {
	FlightID   string      `json:"flight_id"`
	Kind       OutcomeKind `json:"kind"`
	Transcript string      `json:"transcript,omitempty"`
	Reply      string      `json:"reply,omitempty"`
	Booking    *Booking    `json:"booking,omitempty"`
	Err        error       `json:"-"`
}

// HealthStatus is the liveness report of the assistant service
type HealthStatus struct {
	Status       string `json:"status"`
	AIConfigured bool   `json:"ai_configured"`
	Timestamp    string `json:"timestamp"`
}

func (h HealthStatus) OK() bool {
	return h.Status == "ok"
}

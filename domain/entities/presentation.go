package entities

// Severity is the visual weight of a user notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// StatusSlot names a status line on the assistant page
type StatusSlot string

const (
	StatusSlotRecognized StatusSlot = "recognized"
	StatusSlotBackend    StatusSlot = "backend"
)

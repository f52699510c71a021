package repositories

import "github.com/voicebook/assistant/domain/entities"

// Presenter renders pipeline progress to the user. Calls must not block.
type Presenter interface {
	Notify(message string, severity entities.Severity)
	SetStatusText(slot entities.StatusSlot, text string)
	SetCaptureIndicator(active bool)
	ShowBusyIndicator(message string)
	HideBusyIndicator()
	RenderBookings(bookings []entities.Booking)
}

package kafka

import (
	"time"

	"github.com/Domenick1991/airport-booking/internal/domain"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
)

type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"booking_id"`
	Reference     string    `json:"booking_reference"`
	FlightID      string    `json:"flight_id"`
	FlightNumber  string    `json:"flight_number,omitempty"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	SeatClass     string    `json:"seat_class,omitempty"`
	Passengers    int       `json:"passengers"`
	TotalAmount   float64   `json:"total_amount"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewBookingEvent snapshots b for publishing. The contact email is the notification target.
func NewBookingEvent(eventType string, b *domain.Booking, at time.Time) BookingEvent {
	event := BookingEvent{
		Type:          eventType,
		BookingID:     b.ID.String(),
		Reference:     b.Reference,
		FlightID:      b.FlightID.String(),
		UserID:        b.UserID.String(),
		Email:         b.Contact.Email,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Passengers:    len(b.Passengers),
		TotalAmount:   b.TotalAmount,
		OccurredAt:    at.UTC(),
	}
	if b.Flight != nil {
		event.FlightNumber = b.Flight.FlightNumber
	}
	if len(b.Passengers) > 0 {
		event.SeatClass = string(b.Passengers[0].SeatClass)
	}
	return event
}

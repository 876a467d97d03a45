package email

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/kafka"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers booking notifications. Delivery is a structured log line; there is no mail relay.
type Sender struct {
	from   string
	logger logrus.FieldLogger
}

func NewSender(from string, logger logrus.FieldLogger) *Sender {
	return &Sender{from: from, logger: logger}
}

// Compose renders the notification for event. ok is false for events that send no mail.
func Compose(event kafka.BookingEvent) (msg Message, ok bool) {
	flight := event.FlightNumber
	if flight == "" {
		flight = event.FlightID
	}
	switch event.Type {
	case kafka.EventBookingCreated:
		return Message{
			To:      event.Email,
			Subject: fmt.Sprintf("Booking %s confirmed", event.Reference),
			Body: fmt.Sprintf("Your booking %s for flight %s is confirmed: %d passenger(s), %s class, total %.2f.",
				event.Reference, flight, event.Passengers, event.SeatClass, event.TotalAmount),
		}, true
	case kafka.EventBookingCancelled:
		return Message{
			To:      event.Email,
			Subject: fmt.Sprintf("Booking %s cancelled", event.Reference),
			Body: fmt.Sprintf("Your booking %s for flight %s was cancelled. A refund of %.2f has been issued.",
				event.Reference, flight, event.TotalAmount),
		}, true
	}
	return Message{}, false
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, ok := Compose(event)
	if !ok {
		s.logger.WithField("type", event.Type).Debug("no email for event")
		return nil
	}
	if msg.To == "" {
		return fmt.Errorf("booking %s has no contact email", event.Reference)
	}
	s.logger.WithFields(logrus.Fields{
		"from":    s.from,
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("email sent")
	return nil
}

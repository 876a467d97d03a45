package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type Passenger struct {
	FirstName      string    `json:"firstName" validate:"required"`
	LastName       string    `json:"lastName" validate:"required"`
	DateOfBirth    Date      `json:"dateOfBirth" validate:"required"`
	Gender         Gender    `json:"gender" validate:"required,oneof=male female other"`
	PassportNumber string    `json:"passportNumber" validate:"required"`
	Nationality    string    `json:"nationality" validate:"required"`
	SeatNumber     string    `json:"seatNumber,omitempty"`
	SeatClass      SeatClass `json:"seatClass" validate:"omitempty,oneof=economy business first"`
}

type ContactInfo struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// Booking is a reservation of one or more passengers on a single flight.
// Flight and User are only populated on reads that join them.
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	Reference       string        `json:"bookingReference"`
	UserID          uuid.UUID     `json:"userId"`
	FlightID        uuid.UUID     `json:"flightId"`
	Passengers      []Passenger   `json:"passengers"`
	Contact         ContactInfo   `json:"contactInfo"`
	TotalAmount     float64       `json:"totalAmount"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	Status          BookingStatus `json:"bookingStatus"`
	SpecialRequests string        `json:"specialRequests,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`

	Flight *Flight      `json:"flight,omitempty"`
	User   *UserSummary `json:"user,omitempty"`
}

func (b *Booking) HasClass(class SeatClass) bool {
	for _, p := range b.Passengers {
		if p.SeatClass == class {
			return true
		}
	}
	return false
}

// PassengerRecord is one manifest row.
type PassengerRecord struct {
	Passenger
	BookingReference string `json:"bookingReference"`
	UserName         string `json:"userName"`
	UserEmail        string `json:"userEmail"`
}

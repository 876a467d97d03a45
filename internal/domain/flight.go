package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "scheduled"
	FlightStatusBoarding  FlightStatus = "boarding"
	FlightStatusDeparted  FlightStatus = "departed"
	FlightStatusArrived   FlightStatus = "arrived"
	FlightStatusCancelled FlightStatus = "cancelled"
	FlightStatusDelayed   FlightStatus = "delayed"
)

// BookableStatuses are the flight statuses that accept new bookings and show up in listings.
var BookableStatuses = []FlightStatus{FlightStatusScheduled, FlightStatusBoarding}

type SeatClass string

const (
	SeatClassEconomy  SeatClass = "economy"
	SeatClassBusiness SeatClass = "business"
	SeatClassFirst    SeatClass = "first"
)

func (c SeatClass) Valid() bool {
	switch c {
	case SeatClassEconomy, SeatClassBusiness, SeatClassFirst:
		return true
	}
	return false
}

// Endpoint is one end of a flight. Time is the local time of day ("15:04") kept apart from Date.
type Endpoint struct {
	Airport string `json:"airport" validate:"required"`
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"required"`
	Date    Date   `json:"date" validate:"required"`
	Time    string `json:"time" validate:"required,datetime=15:04"`
}

// At combines Date and Time in loc.
func (e Endpoint) At(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock, err := time.Parse("15:04", strings.TrimSpace(e.Time))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time of day %q: %w", e.Time, err)
	}
	y, m, d := e.Date.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

type Capacity struct {
	Total    int `json:"total" validate:"gte=0"`
	Economy  int `json:"economy" validate:"gte=0"`
	Business int `json:"business" validate:"gte=0"`
	First    int `json:"first" validate:"gte=0"`
}

func (c Capacity) For(class SeatClass) int {
	switch class {
	case SeatClassBusiness:
		return c.Business
	case SeatClassFirst:
		return c.First
	default:
		return c.Economy
	}
}

type Price struct {
	Economy  float64 `json:"economy" validate:"gte=0"`
	Business float64 `json:"business" validate:"gte=0"`
	First    float64 `json:"first" validate:"gte=0"`
}

func (p Price) For(class SeatClass) float64 {
	switch class {
	case SeatClassBusiness:
		return p.Business
	case SeatClassFirst:
		return p.First
	default:
		return p.Economy
	}
}

type Flight struct {
	ID           uuid.UUID    `json:"id"`
	FlightNumber string       `json:"flightNumber" validate:"required"`
	Airline      string       `json:"airline" validate:"required"`
	Departure    Endpoint     `json:"departure"`
	Arrival      Endpoint     `json:"arrival"`
	Duration     string       `json:"duration" validate:"required"`
	Aircraft     string       `json:"aircraft" validate:"required"`
	Capacity     Capacity     `json:"capacity"`
	Price        Price        `json:"price"`
	Status       FlightStatus `json:"status" validate:"omitempty,oneof=scheduled boarding departed arrived cancelled delayed"`
	Gate         string       `json:"gate,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Normalize applies the defaults the store relies on.
func (f *Flight) Normalize() {
	f.FlightNumber = strings.ToUpper(strings.TrimSpace(f.FlightNumber))
	if f.Status == "" {
		f.Status = FlightStatusScheduled
	}
}

func (f *Flight) Bookable() bool {
	return f.Status == FlightStatusScheduled || f.Status == FlightStatusBoarding
}

// ValidateFlight checks field constraints and that the class capacities fit in the total.
func ValidateFlight(f *Flight) error {
	fields := fieldErrors(f)
	c := f.Capacity
	if c.Economy+c.Business+c.First > c.Total {
		fields = append(fields, FieldError{
			Field:   "capacity",
			Message: "capacity.economy + capacity.business + capacity.first must not exceed capacity.total",
		})
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

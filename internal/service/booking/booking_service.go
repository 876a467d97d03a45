package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/domain"
	"github.com/Domenick1991/airport-booking/internal/kafka"
	"github.com/Domenick1991/airport-booking/internal/metrics"
	"github.com/Domenick1991/airport-booking/internal/policy"
	"github.com/Domenick1991/airport-booking/internal/repository"
)

const (
	DefaultCancellationWindow = 24 * time.Hour
	DefaultReferenceAttempts  = 3
	DefaultLockTTL            = 10 * time.Second
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, identity policy.Identity, input CreateBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID uuid.UUID, identity policy.Identity) (*domain.Booking, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	GetAllBookings(ctx context.Context, filter repository.BookingFilter, page domain.Page) (domain.PageResult[domain.Booking], error)
	GetBooking(ctx context.Context, bookingID uuid.UUID, identity policy.Identity) (*domain.Booking, error)
	GetFlightPassengers(ctx context.Context, flightID uuid.UUID) ([]domain.PassengerRecord, error)
}

// Cache is the distributed lock that queues concurrent bookings of one cabin ahead of the
// database lock. AcquireBookingLock waits up to ttl and returns the token owning the lock.
type Cache interface {
	AcquireBookingLock(ctx context.Context, flightID uuid.UUID, class domain.SeatClass, ttl time.Duration) (string, error)
	ReleaseBookingLock(ctx context.Context, flightID uuid.UUID, class domain.SeatClass, token string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	flights            repository.FlightRepository
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	cancellationWindow time.Duration
	referenceAttempts  int
	lockTTL            time.Duration
	location           *time.Location
	now                func() time.Time
	newReference       func(time.Time) string
	logger             logrus.FieldLogger
}

type CreateBookingInput struct {
	FlightID        uuid.UUID          `json:"flightId" validate:"required"`
	Passengers      []domain.Passenger `json:"passengers" validate:"required,min=1,dive"`
	Contact         domain.ContactInfo `json:"contactInfo"`
	SpecialRequests string             `json:"specialRequests"`
	SeatClass       domain.SeatClass   `json:"seatClass" validate:"omitempty,oneof=economy business first"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithCancellationWindow(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.cancellationWindow = d
		}
	}
}

func WithReferenceAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 {
			s.referenceAttempts = n
		}
	}
}

func WithLockTTL(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// WithLocation sets the zone flight departure dates and times are interpreted in.
func WithLocation(loc *time.Location) BookingServiceOption {
	return func(s *BookingService) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func WithReferenceGenerator(gen func(time.Time) string) BookingServiceOption {
	return func(s *BookingService) {
		s.newReference = gen
	}
}

func WithLogger(logger logrus.FieldLogger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = logger
	}
}

// NewBookingService wires the ledger. cache and producer may be nil.
func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	cache Cache,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:           bookings,
		flights:            flights,
		cache:              cache,
		producer:           producer,
		bookingTopic:       bookingTopic,
		cancellationWindow: DefaultCancellationWindow,
		referenceAttempts:  DefaultReferenceAttempts,
		lockTTL:            DefaultLockTTL,
		location:           time.UTC,
		now:                time.Now,
		newReference:       NewReference,
		logger:             logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, identity policy.Identity, input CreateBookingInput) (*domain.Booking, error) {
	if err := domain.Validate(input); err != nil {
		metrics.IncBookingRejected("validation")
		return nil, err
	}
	class := input.SeatClass
	if class == "" {
		class = domain.SeatClassEconomy
	}

	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}
	if !flight.Bookable() {
		metrics.IncBookingRejected("flight_status")
		return nil, domain.InvalidState("Flight is not available for booking")
	}

	// Failing to get the lock is not fatal: the flight row lock in insert still serializes the count.
	if s.cache != nil {
		token, err := s.cache.AcquireBookingLock(ctx, flight.ID, class, s.lockTTL)
		if err != nil {
			s.logger.WithError(err).WithField("flight_id", flight.ID).Warn("booking lock unavailable, relying on database lock")
		} else {
			defer func() {
				if err := s.cache.ReleaseBookingLock(context.WithoutCancel(ctx), flight.ID, class, token); err != nil {
					s.logger.WithError(err).WithField("flight_id", flight.ID).Warn("failed to release booking lock")
				}
			}()
		}
	}

	// The booking-level class overrides whatever each passenger carried.
	passengers := make([]domain.Passenger, len(input.Passengers))
	for i, p := range input.Passengers {
		p.SeatClass = class
		passengers[i] = p
	}

	booking := &domain.Booking{
		ID:              uuid.New(),
		UserID:          identity.UserID,
		FlightID:        flight.ID,
		Passengers:      passengers,
		Contact:         input.Contact,
		TotalAmount:     flight.Price.For(class) * float64(len(passengers)),
		PaymentStatus:   domain.PaymentStatusPaid,
		Status:          domain.BookingStatusConfirmed,
		SpecialRequests: input.SpecialRequests,
	}

	if err := s.insert(ctx, flight, class, booking); err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			metrics.IncBookingRejected("capacity")
		}
		return nil, err
	}

	created, err := s.bookings.GetByID(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("reload booking %s: %w", booking.ID, err)
	}

	metrics.ObserveBookingCreated(string(class), len(passengers))
	s.logger.WithFields(logrus.Fields{
		"booking_reference": created.Reference,
		"flight_id":         flight.ID,
		"seat_class":        class,
		"passengers":        len(passengers),
	}).Info("booking created")

	s.publish(ctx, kafka.EventBookingCreated, created)
	return created, nil
}

// insert checks capacity and stores b under the flight lock, drawing a new reference
// whenever the previous one was already taken.
func (s *BookingService) insert(ctx context.Context, flight *domain.Flight, class domain.SeatClass, b *domain.Booking) error {
	capacity := flight.Capacity.For(class)
	for attempt := 1; ; attempt++ {
		b.Reference = s.newReference(s.now())
		err := s.bookings.WithFlightLock(ctx, flight.ID, func(ctx context.Context, w repository.BookingWriter) error {
			count, err := w.CountConfirmedWithClass(ctx, flight.ID, class)
			if err != nil {
				return err
			}
			if count+len(b.Passengers) > capacity {
				return domain.CapacityExceeded(class)
			}
			return w.Insert(ctx, b)
		})
		if !errors.Is(err, repository.ErrDuplicateReference) {
			return err
		}
		if attempt >= s.referenceAttempts {
			return domain.Conflict("Could not allocate a unique booking reference")
		}
		metrics.IncReferenceRetry()
		s.logger.WithField("booking_reference", b.Reference).Warn("booking reference taken, regenerating")
	}
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, identity policy.Identity) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeBooking(identity, current, "cancel"); err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusCancelled {
		return nil, domain.InvalidState("Booking is already cancelled")
	}

	flight, err := s.bookingFlight(ctx, current)
	if err != nil {
		return nil, err
	}
	departure, err := flight.Departure.At(s.location)
	if err != nil {
		return nil, fmt.Errorf("flight %s departure: %w", flight.ID, err)
	}

	now := s.now()
	if departure.Sub(now) < s.cancellationWindow {
		return nil, domain.InvalidState(fmt.Sprintf("Cannot cancel booking within %s of departure", windowText(s.cancellationWindow)))
	}

	if err := s.bookings.Cancel(ctx, current.ID, now); err != nil {
		return nil, err
	}

	updated, err := s.bookings.GetByID(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("reload booking %s: %w", current.ID, err)
	}

	metrics.IncBookingCancelled()
	s.logger.WithField("booking_reference", updated.Reference).Info("booking cancelled")
	s.publish(ctx, kafka.EventBookingCancelled, updated)
	return updated, nil
}

// bookingFlight resolves the flight of b. A booking whose flight is gone is a broken store,
// so the lookup failure is not reported as NotFound.
func (s *BookingService) bookingFlight(ctx context.Context, b *domain.Booking) (*domain.Flight, error) {
	if b.Flight != nil {
		return b.Flight, nil
	}
	flight, err := s.flights.GetByID(ctx, b.FlightID)
	if err != nil {
		return nil, fmt.Errorf("resolve flight %s of booking %s: %v", b.FlightID, b.ID, err)
	}
	return flight, nil
}

func windowText(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}

func (s *BookingService) GetUserBookings(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

func (s *BookingService) GetAllBookings(ctx context.Context, filter repository.BookingFilter, page domain.Page) (domain.PageResult[domain.Booking], error) {
	page = domain.NewPage(page.Page, page.Limit)
	items, total, err := s.bookings.List(ctx, filter, page)
	if err != nil {
		return domain.PageResult[domain.Booking]{}, err
	}
	return domain.PageResult[domain.Booking]{
		Items: items,
		Total: total,
		Page:  page.Page,
		Pages: page.Pages(total),
	}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, identity policy.Identity) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeBooking(identity, b, "access"); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BookingService) GetFlightPassengers(ctx context.Context, flightID uuid.UUID) ([]domain.PassengerRecord, error) {
	bookings, err := s.bookings.ListConfirmedByFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return BuildManifest(bookings), nil
}

// publish is best effort: a broker failure is logged and never fails the request.
func (s *BookingService) publish(ctx context.Context, eventType string, b *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.NewBookingEvent(eventType, b, s.now())
	key := b.ID.String()

	if err := s.producer.Publish(ctx, s.bookingTopic, key, event); err != nil {
		s.logger.WithError(err).WithField("booking_reference", b.Reference).Warnf("failed to publish %s event", eventType)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, key, event); err != nil {
			s.logger.WithError(err).WithField("booking_reference", b.Reference).Warnf("failed to publish %s notification", eventType)
		}
	}
}

var _ BookingUseCase = (*BookingService)(nil)

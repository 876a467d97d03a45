package booking

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/airport-booking/internal/domain"
	"github.com/Domenick1991/airport-booking/internal/kafka"
	"github.com/Domenick1991/airport-booking/internal/policy"
	"github.com/Domenick1991/airport-booking/internal/repository"
)

// Mock структуры

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Update(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

func (m *MockFlightRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFlightRepository) Search(ctx context.Context, q repository.FlightSearch) ([]domain.Flight, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) List(ctx context.Context, filter repository.FlightFilter, page domain.Page) ([]domain.Flight, int, error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).([]domain.Flight), args.Int(1), args.Error(2)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) AcquireBookingLock(ctx context.Context, flightID uuid.UUID, class domain.SeatClass, ttl time.Duration) (string, error) {
	args := m.Called(ctx, flightID, class, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockCache) ReleaseBookingLock(ctx context.Context, flightID uuid.UUID, class domain.SeatClass, token string) error {
	args := m.Called(ctx, flightID, class, token)
	return args.Error(0)
}

// queueLock blocks AcquireBookingLock while another request holds the lock, the way the
// Redis lock waits for its holder.
type queueLock struct {
	slot    chan struct{}
	waiting atomic.Int32
}

func newQueueLock() *queueLock {
	return &queueLock{slot: make(chan struct{}, 1)}
}

func (l *queueLock) AcquireBookingLock(ctx context.Context, _ uuid.UUID, _ domain.SeatClass, _ time.Duration) (string, error) {
	l.waiting.Add(1)
	defer l.waiting.Add(-1)
	select {
	case l.slot <- struct{}{}:
		return "token", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *queueLock) ReleaseBookingLock(context.Context, uuid.UUID, domain.SeatClass, string) error {
	<-l.slot
	return nil
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// memoryStore keeps bookings in memory and joins flights and users the way the Postgres
// repository does.
type memoryStore struct {
	mu       sync.Mutex
	flights  map[uuid.UUID]*domain.Flight
	users    map[uuid.UUID]domain.UserSummary
	bookings []*domain.Booking
	refs     map[string]bool
	clock    time.Time

	// onLock runs once inside the next WithFlightLock, with the store locked.
	onLock func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		flights: make(map[uuid.UUID]*domain.Flight),
		users:   make(map[uuid.UUID]domain.UserSummary),
		refs:    make(map[string]bool),
		clock:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memoryStore) joined(b *domain.Booking) domain.Booking {
	out := *b
	out.Passengers = append([]domain.Passenger(nil), b.Passengers...)
	if f, ok := s.flights[b.FlightID]; ok {
		flight := *f
		out.Flight = &flight
	}
	if u, ok := s.users[b.UserID]; ok {
		user := u
		out.User = &user
	}
	return out
}

type memoryWriter struct {
	store *memoryStore
}

func (w memoryWriter) CountConfirmedWithClass(_ context.Context, flightID uuid.UUID, class domain.SeatClass) (int, error) {
	count := 0
	for _, b := range w.store.bookings {
		if b.FlightID == flightID && b.Status == domain.BookingStatusConfirmed && b.HasClass(class) {
			count++
		}
	}
	return count, nil
}

func (w memoryWriter) Insert(_ context.Context, b *domain.Booking) error {
	if w.store.refs[b.Reference] {
		return repository.ErrDuplicateReference
	}
	stored := *b
	stored.Passengers = append([]domain.Passenger(nil), b.Passengers...)
	stored.CreatedAt = w.store.tick()
	stored.UpdatedAt = stored.CreatedAt
	w.store.bookings = append(w.store.bookings, &stored)
	w.store.refs[b.Reference] = true
	return nil
}

func (s *memoryStore) WithFlightLock(ctx context.Context, flightID uuid.UUID, fn func(ctx context.Context, w repository.BookingWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flights[flightID]; !ok {
		return domain.NotFound("Flight not found")
	}
	if hook := s.onLock; hook != nil {
		s.onLock = nil
		hook()
	}
	return fn(ctx, memoryWriter{store: s})
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			out := s.joined(b)
			return &out, nil
		}
	}
	return nil, domain.NotFound("Booking not found")
}

func (s *memoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for i := len(s.bookings) - 1; i >= 0; i-- {
		if s.bookings[i].UserID == userID {
			out = append(out, s.joined(s.bookings[i]))
		}
	}
	return out, nil
}

func (s *memoryStore) List(_ context.Context, filter repository.BookingFilter, page domain.Page) ([]domain.Booking, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.Booking
	for i := len(s.bookings) - 1; i >= 0; i-- {
		b := s.bookings[i]
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.FlightID != uuid.Nil && b.FlightID != filter.FlightID {
			continue
		}
		matched = append(matched, s.joined(b))
	}
	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

func (s *memoryStore) ListConfirmedByFlight(_ context.Context, flightID uuid.UUID) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.FlightID == flightID && b.Status == domain.BookingStatusConfirmed {
			out = append(out, s.joined(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) Cancel(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID != id {
			continue
		}
		if b.Status == domain.BookingStatusCancelled {
			return domain.InvalidState("Booking is already cancelled")
		}
		b.Status = domain.BookingStatusCancelled
		b.PaymentStatus = domain.PaymentStatusRefunded
		b.UpdatedAt = at
		return nil
	}
	return domain.NotFound("Booking not found")
}

func (s *memoryStore) CountByStatus(context.Context) (map[domain.BookingStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.BookingStatus]int64)
	for _, b := range s.bookings {
		counts[b.Status]++
	}
	return counts, nil
}

var _ repository.BookingRepository = (*memoryStore)(nil)

// ============================ fixtures ============================

var referencePattern = regexp.MustCompile(`^BK\d{8}[A-Z0-9]{4}$`)

func aa101(departure time.Time) *domain.Flight {
	return &domain.Flight{
		ID:           uuid.New(),
		FlightNumber: "AA101",
		Airline:      "American Airlines",
		Departure: domain.Endpoint{
			Airport: "JFK", City: "New York", Country: "USA",
			Date: domain.DateOf(departure), Time: departure.Format("15:04"),
		},
		Arrival: domain.Endpoint{
			Airport: "LAX", City: "Los Angeles", Country: "USA",
			Date: domain.DateOf(departure), Time: "14:00",
		},
		Capacity: domain.Capacity{Total: 180, Economy: 150, Business: 20, First: 10},
		Price:    domain.Price{Economy: 299, Business: 899, First: 1599},
		Status:   domain.FlightStatusScheduled,
	}
}

func passengers(n int) []domain.Passenger {
	out := make([]domain.Passenger, n)
	for i := range out {
		out[i] = domain.Passenger{
			FirstName:      "Pax",
			LastName:       string(rune('A' + i%26)),
			DateOfBirth:    domain.NewDate(1990, time.May, 1),
			Gender:         domain.GenderFemale,
			PassportNumber: "P" + uuid.NewString()[:8],
			Nationality:    "US",
		}
	}
	return out
}

func bookingInput(flightID uuid.UUID, n int, class domain.SeatClass) CreateBookingInput {
	return CreateBookingInput{
		FlightID:   flightID,
		Passengers: passengers(n),
		Contact:    domain.ContactInfo{Email: "jane@example.com", Phone: "+1 555 0100"},
		SeatClass:  class,
	}
}

type harness struct {
	service *BookingService
	store   *memoryStore
	flights *MockFlightRepository
	flight  *domain.Flight
	now     time.Time
	owner   policy.Identity
}

func newHarness(t *testing.T, opts ...BookingServiceOption) *harness {
	t.Helper()
	now := time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	flight := aa101(time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC))

	store := newMemoryStore()
	store.flights[flight.ID] = flight
	owner := policy.Identity{UserID: uuid.New(), Role: domain.RoleUser}
	store.users[owner.UserID] = domain.UserSummary{ID: owner.UserID, Name: "Jane Doe", Email: "jane@example.com"}

	flights := &MockFlightRepository{}
	flights.On("GetByID", mock.Anything, flight.ID).Return(flight, nil).Maybe()

	logger, _ := test.NewNullLogger()
	base := []BookingServiceOption{WithClock(func() time.Time { return now }), WithLogger(logger)}
	svc := NewBookingService(store, flights, nil, nil, "", append(base, opts...)...)

	return &harness{service: svc, store: store, flights: flights, flight: flight, now: now, owner: owner}
}

// ============================ Тесты для BookingService ============================

func TestBookingService_CreateBooking_Scenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.CreateBooking(ctx, h.owner, bookingInput(h.flight.ID, 2, domain.SeatClassEconomy))
	require.NoError(t, err)
	assert.Equal(t, 598.0, first.TotalAmount)
	assert.Regexp(t, referencePattern, first.Reference)
	assert.Equal(t, domain.BookingStatusConfirmed, first.Status)
	assert.Equal(t, domain.PaymentStatusPaid, first.PaymentStatus)
	require.NotNil(t, first.Flight)
	assert.Equal(t, "AA101", first.Flight.FlightNumber)
	require.NotNil(t, first.User)
	assert.Equal(t, "Jane Doe", first.User.Name)

	second, err := h.service.CreateBooking(ctx, h.owner, bookingInput(h.flight.ID, 149, domain.SeatClassEconomy))
	require.NoError(t, err)
	assert.Equal(t, 149*299.0, second.TotalAmount)
	assert.NotEqual(t, first.Reference, second.Reference)

	// Departs from the AA101 walkthrough's last step ("one more passenger fails"), which counts
	// seats. Capacity counts confirmed bookings holding the class, so one more passenger still
	// fits (2 + 1 <= 150) and 149 more is the request that crosses the limit.
	_, err = h.service.CreateBooking(ctx, h.owner, bookingInput(h.flight.ID, 149, domain.SeatClassEconomy))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.EqualError(t, err, "Not enough economy seats available")
	assert.Len(t, h.store.bookings, 2)
}

func TestBookingService_CreateBooking_PriceInvariant(t *testing.T) {
	h := newHarness(t)

	for _, class := range []domain.SeatClass{domain.SeatClassEconomy, domain.SeatClassBusiness, domain.SeatClassFirst} {
		b, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 3, class))
		require.NoError(t, err, class)
		assert.Equal(t, h.flight.Price.For(class)*3, b.TotalAmount, class)
	}
}

func TestBookingService_CreateBooking_DefaultsToEconomyAndStampsClass(t *testing.T) {
	h := newHarness(t)
	input := bookingInput(h.flight.ID, 2, "")
	input.Passengers[0].SeatClass = domain.SeatClassFirst

	b, err := h.service.CreateBooking(context.Background(), h.owner, input)
	require.NoError(t, err)
	for _, p := range b.Passengers {
		assert.Equal(t, domain.SeatClassEconomy, p.SeatClass)
	}
	assert.Equal(t, 598.0, b.TotalAmount)
}

func TestBookingService_CreateBooking_CapacityExceededDoesNotPersist(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 11, domain.SeatClassFirst))
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.EqualError(t, err, "Not enough first seats available")
	assert.Empty(t, h.store.bookings)
}

func TestBookingService_CreateBooking_ValidationListsEveryField(t *testing.T) {
	h := newHarness(t)
	input := CreateBookingInput{
		FlightID:   h.flight.ID,
		Passengers: []domain.Passenger{{FirstName: "Jane", Gender: "unknown"}},
		SeatClass:  "premium",
	}

	_, err := h.service.CreateBooking(context.Background(), h.owner, input)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "passengers[0].lastName")
	assert.Contains(t, fields, "passengers[0].gender")
	assert.Contains(t, fields, "contactInfo.email")
	assert.Contains(t, fields, "contactInfo.phone")
	assert.Contains(t, fields, "seatClass")
	assert.Empty(t, h.store.bookings)
}

func TestBookingService_CreateBooking_NoPassengers(t *testing.T) {
	h := newHarness(t)
	input := bookingInput(h.flight.ID, 0, domain.SeatClassEconomy)

	_, err := h.service.CreateBooking(context.Background(), h.owner, input)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBookingService_CreateBooking_FlightNotFound(t *testing.T) {
	h := newHarness(t)
	missing := uuid.New()
	h.flights.On("GetByID", mock.Anything, missing).Return(nil, domain.NotFound("Flight not found"))

	_, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(missing, 1, domain.SeatClassEconomy))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingService_CreateBooking_FlightNotBookable(t *testing.T) {
	h := newHarness(t)
	h.flight.Status = domain.FlightStatusDeparted

	_, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.EqualError(t, err, "Flight is not available for booking")
	assert.Empty(t, h.store.bookings)
}

func TestBookingService_CreateBooking_RetriesDuplicateReference(t *testing.T) {
	refs := []string{"BK00000001AAAA", "BK00000001AAAA", "BK00000002BBBB"}
	calls := 0
	gen := func(time.Time) string {
		ref := refs[calls]
		calls++
		return ref
	}
	h := newHarness(t, WithReferenceGenerator(gen))

	first, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)
	assert.Equal(t, "BK00000001AAAA", first.Reference)

	second, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)
	assert.Equal(t, "BK00000002BBBB", second.Reference)
	assert.Equal(t, 3, calls)
}

func TestBookingService_CreateBooking_ReferenceAttemptsExhausted(t *testing.T) {
	h := newHarness(t, WithReferenceGenerator(func(time.Time) string { return "BK00000001AAAA" }), WithReferenceAttempts(2))

	_, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)

	_, err = h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Len(t, h.store.bookings, 1)
}

func TestBookingService_CreateBooking_ConcurrentRequestsRespectCapacity(t *testing.T) {
	h := newHarness(t)
	h.flight.Capacity.First = 5

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassFirst))
		}()
	}
	wg.Wait()

	// With one passenger per booking the per-booking count and seat count coincide.
	assert.Len(t, h.store.bookings, 5)
}

func TestBookingService_CreateBooking_LockAndEvents(t *testing.T) {
	h := newHarness(t)
	mockCache := &MockCache{}
	mockProducer := &MockProducer{}
	logger, _ := test.NewNullLogger()
	svc := NewBookingService(h.store, h.flights, mockCache, mockProducer, "booking-events",
		WithNotificationsTopic("notifications"),
		WithClock(func() time.Time { return h.now }),
		WithLockTTL(5*time.Second),
		WithLogger(logger),
	)

	mockCache.On("AcquireBookingLock", mock.Anything, h.flight.ID, domain.SeatClassBusiness, 5*time.Second).Return("lock-token", nil)
	mockCache.On("ReleaseBookingLock", mock.Anything, h.flight.ID, domain.SeatClassBusiness, "lock-token").Return(nil)
	isCreated := mock.MatchedBy(func(e kafka.BookingEvent) bool {
		return e.Type == kafka.EventBookingCreated && e.Passengers == 2 && e.SeatClass == "business"
	})
	mockProducer.On("Publish", mock.Anything, "booking-events", mock.Anything, isCreated).Return(nil)
	mockProducer.On("Publish", mock.Anything, "notifications", mock.Anything, isCreated).Return(nil)

	b, err := svc.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 2, domain.SeatClassBusiness))
	require.NoError(t, err)
	assert.Equal(t, 1798.0, b.TotalAmount)

	mockCache.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_CreateBooking_LockTimeoutFallsBackToDatabase(t *testing.T) {
	h := newHarness(t)
	mockCache := &MockCache{}
	logger, hook := test.NewNullLogger()
	svc := NewBookingService(h.store, h.flights, mockCache, nil, "",
		WithClock(func() time.Time { return h.now }), WithLogger(logger))

	mockCache.On("AcquireBookingLock", mock.Anything, h.flight.ID, domain.SeatClassEconomy, DefaultLockTTL).Return("", errors.New("booking lock wait timed out"))

	b, err := svc.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.Len(t, h.store.bookings, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	mockCache.AssertNotCalled(t, "ReleaseBookingLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_CreateBooking_ConcurrentBookingsWaitForLock(t *testing.T) {
	h := newHarness(t)
	lock := newQueueLock()
	logger, _ := test.NewNullLogger()
	svc := NewBookingService(h.store, h.flights, lock, nil, "",
		WithClock(func() time.Time { return h.now }), WithLogger(logger))

	entered := make(chan struct{})
	resume := make(chan struct{})
	h.store.onLock = func() {
		close(entered)
		<-resume
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.CreateBooking(ctx, h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = svc.CreateBooking(ctx, h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	}()
	require.Eventually(t, func() bool { return lock.waiting.Load() == 1 }, time.Second, 5*time.Millisecond)

	close(resume)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Len(t, h.store.bookings, 2)
}

func TestBookingService_CreateBooking_LockErrorFallsBackToDatabase(t *testing.T) {
	h := newHarness(t)
	mockCache := &MockCache{}
	logger, hook := test.NewNullLogger()
	svc := NewBookingService(h.store, h.flights, mockCache, nil, "",
		WithClock(func() time.Time { return h.now }), WithLogger(logger))

	mockCache.On("AcquireBookingLock", mock.Anything, h.flight.ID, domain.SeatClassEconomy, DefaultLockTTL).Return("", errors.New("redis down"))

	_, err := svc.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)
	assert.Len(t, h.store.bookings, 1)
	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, logrus.WarnLevel, hook.AllEntries()[0].Level)
}

func TestBookingService_CreateBooking_PublishFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	mockProducer := &MockProducer{}
	logger, hook := test.NewNullLogger()
	svc := NewBookingService(h.store, h.flights, nil, mockProducer, "booking-events",
		WithClock(func() time.Time { return h.now }), WithLogger(logger))

	mockProducer.On("Publish", mock.Anything, "booking-events", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, err := svc.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestBookingService_CancelBooking_Success(t *testing.T) {
	h := newHarness(t)
	b, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 2, domain.SeatClassEconomy))
	require.NoError(t, err)

	cancelled, err := h.service.CancelBooking(context.Background(), b.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, h.now, cancelled.UpdatedAt)
	assert.Equal(t, b.Reference, cancelled.Reference)

	_, err = h.service.CancelBooking(context.Background(), b.ID, h.owner)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestBookingService_CancelBooking_Window(t *testing.T) {
	tests := []struct {
		name    string
		until   time.Duration
		wantErr bool
	}{
		{name: "well ahead", until: 72 * time.Hour},
		{name: "exactly 24 hours", until: 24 * time.Hour},
		{name: "23 hours", until: 23 * time.Hour, wantErr: true},
		{name: "already departed", until: -time.Hour, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			b, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
			require.NoError(t, err)

			departure := h.now.Add(tt.until)
			h.flight.Departure.Date = domain.DateOf(departure)
			h.flight.Departure.Time = departure.Format("15:04")

			_, err = h.service.CancelBooking(context.Background(), b.ID, h.owner)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidState)
				assert.EqualError(t, err, "Cannot cancel booking within 24 hours of departure")
				assert.Equal(t, domain.BookingStatusConfirmed, h.store.bookings[0].Status)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBookingService_CancelBooking_UsesConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	h := newHarness(t, WithLocation(loc))
	b, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)

	// 30h ahead on the UTC wall clock is only 25h ahead once read as UTC+5.
	departure := h.now.Add(30 * time.Hour)
	h.flight.Departure.Date = domain.DateOf(departure)
	h.flight.Departure.Time = departure.Format("15:04")
	_, err = h.service.CancelBooking(context.Background(), b.ID, h.owner)
	require.NoError(t, err)

	b, err = h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)
	departure = h.now.Add(28 * time.Hour)
	h.flight.Departure.Date = domain.DateOf(departure)
	h.flight.Departure.Time = departure.Format("15:04")
	_, err = h.service.CancelBooking(context.Background(), b.ID, h.owner)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestBookingService_CancelBooking_Access(t *testing.T) {
	h := newHarness(t)
	b, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)

	stranger := policy.Identity{UserID: uuid.New(), Role: domain.RoleUser}
	_, err = h.service.CancelBooking(context.Background(), b.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.EqualError(t, err, "Not authorized to cancel this booking")

	admin := policy.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}
	cancelled, err := h.service.CancelBooking(context.Background(), b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
}

func TestBookingService_CancelBooking_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.CancelBooking(context.Background(), uuid.New(), h.owner)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingService_CancelBooking_MissingFlightIsInternal(t *testing.T) {
	h := newHarness(t)
	b, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)

	delete(h.store.flights, h.flight.ID)
	flights := &MockFlightRepository{}
	flights.On("GetByID", mock.Anything, h.flight.ID).Return(nil, domain.NotFound("Flight not found"))
	svc := NewBookingService(h.store, flights, nil, nil, "", WithClock(func() time.Time { return h.now }))

	_, err = svc.CancelBooking(context.Background(), b.ID, h.owner)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.BookingStatusConfirmed, h.store.bookings[0].Status)
}

func TestBookingService_CapacityFreedByCancellation(t *testing.T) {
	h := newHarness(t)
	h.flight.Capacity.First = 2

	b, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 2, domain.SeatClassFirst))
	require.NoError(t, err)
	_, err = h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 2, domain.SeatClassFirst))
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	_, err = h.service.CancelBooking(context.Background(), b.ID, h.owner)
	require.NoError(t, err)
	_, err = h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 2, domain.SeatClassFirst))
	assert.NoError(t, err)
}

func TestBookingService_GetBooking(t *testing.T) {
	h := newHarness(t)
	b, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)

	got, err := h.service.GetBooking(context.Background(), b.ID, h.owner)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, got.Reference)

	_, err = h.service.GetBooking(context.Background(), b.ID, policy.Identity{UserID: uuid.New(), Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.EqualError(t, err, "Not authorized to access this booking")

	_, err = h.service.GetBooking(context.Background(), b.ID, policy.Identity{UserID: uuid.New(), Role: domain.RoleAdmin})
	assert.NoError(t, err)

	_, err = h.service.GetBooking(context.Background(), uuid.New(), h.owner)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingService_GetUserBookings_NewestFirst(t *testing.T) {
	h := newHarness(t)
	first, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)
	second, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)

	other := policy.Identity{UserID: uuid.New(), Role: domain.RoleUser}
	_, err = h.service.CreateBooking(context.Background(), other, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
	require.NoError(t, err)

	list, err := h.service.GetUserBookings(context.Background(), h.owner.UserID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.NotNil(t, list[0].Flight)
}

func TestBookingService_GetAllBookings_Pagination(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 12; i++ {
		_, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 1, domain.SeatClassEconomy))
		require.NoError(t, err)
	}

	result, err := h.service.GetAllBookings(context.Background(), repository.BookingFilter{}, domain.Page{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, result.Items, 5)
	assert.Equal(t, 12, result.Total)
	assert.Equal(t, 2, result.Page)
	assert.Equal(t, 3, result.Pages)

	result, err = h.service.GetAllBookings(context.Background(), repository.BookingFilter{}, domain.Page{})
	require.NoError(t, err)
	assert.Len(t, result.Items, 10)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 2, result.Pages)

	result, err = h.service.GetAllBookings(context.Background(), repository.BookingFilter{Status: domain.BookingStatusCancelled}, domain.Page{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 0, result.Pages)
}

func TestBookingService_GetFlightPassengers(t *testing.T) {
	h := newHarness(t)
	kept, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 3, domain.SeatClassEconomy))
	require.NoError(t, err)
	dropped, err := h.service.CreateBooking(context.Background(), h.owner, bookingInput(h.flight.ID, 2, domain.SeatClassEconomy))
	require.NoError(t, err)
	_, err = h.service.CancelBooking(context.Background(), dropped.ID, h.owner)
	require.NoError(t, err)

	manifest, err := h.service.GetFlightPassengers(context.Background(), h.flight.ID)
	require.NoError(t, err)
	require.Len(t, manifest, 3)
	for i, rec := range manifest {
		assert.Equal(t, kept.Reference, rec.BookingReference)
		assert.Equal(t, "Jane Doe", rec.UserName)
		assert.Equal(t, "jane@example.com", rec.UserEmail)
		assert.Equal(t, kept.Passengers[i].PassportNumber, rec.PassportNumber)
	}
}

func TestNewReference(t *testing.T) {
	now := time.UnixMilli(1_736_500_123_456)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := NewReference(now)
		assert.Regexp(t, referencePattern, ref)
		assert.Equal(t, "BK00123456", ref[:10])
		seen[ref] = true
	}
	// 36^4 suffixes; a thousand draws should almost never collide more than a handful of times.
	assert.Greater(t, len(seen), 990)
}

func TestBuildManifest(t *testing.T) {
	user := &domain.UserSummary{Name: "Jane Doe", Email: "jane@example.com"}
	bookings := []domain.Booking{
		{Reference: "BK1", Status: domain.BookingStatusConfirmed, User: user, Passengers: passengers(2)},
		{Reference: "BK2", Status: domain.BookingStatusCancelled, User: user, Passengers: passengers(4)},
		{Reference: "BK3", Status: domain.BookingStatusConfirmed, Passengers: passengers(1)},
	}

	records := BuildManifest(bookings)
	require.Len(t, records, 3)
	assert.Equal(t, "BK1", records[0].BookingReference)
	assert.Equal(t, bookings[0].Passengers[1].PassportNumber, records[1].PassportNumber)
	assert.Equal(t, "BK3", records[2].BookingReference)
	assert.Empty(t, records[2].UserName)

	assert.Empty(t, BuildManifest(nil))
}

package flights

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/domain"
	"github.com/Domenick1991/airport-booking/internal/repository"
)

type FlightUseCase interface {
	Search(ctx context.Context, input SearchInput) ([]domain.Flight, error)
	List(ctx context.Context, input ListInput, page domain.Page) (domain.PageResult[domain.Flight], error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) (*domain.Flight, error)
	Update(ctx context.Context, id uuid.UUID, apply func(*domain.Flight) error) (*domain.Flight, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FlightCache is the read cache in front of single-flight lookups. A nil flight means a miss.
type FlightCache interface {
	GetFlight(ctx context.Context, id uuid.UUID) (*domain.Flight, error)
	SetFlight(ctx context.Context, flight *domain.Flight) error
	DeleteFlight(ctx context.Context, id uuid.UUID) error
}

type FlightService struct {
	repo     repository.FlightRepository
	cache    FlightCache
	location *time.Location
	now      func() time.Time
	logger   logrus.FieldLogger
}

type SearchInput struct {
	From          string
	To            string
	DepartureDate string
	Passengers    int
	SeatClass     domain.SeatClass
}

type ListInput struct {
	Departure string
	Arrival   string
	Date      string
}

type FlightServiceOption func(*FlightService)

// WithLocation sets the zone "today" is computed in for listings.
func WithLocation(loc *time.Location) FlightServiceOption {
	return func(s *FlightService) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) FlightServiceOption {
	return func(s *FlightService) {
		s.now = now
	}
}

func WithLogger(logger logrus.FieldLogger) FlightServiceOption {
	return func(s *FlightService) {
		s.logger = logger
	}
}

func NewFlightService(repo repository.FlightRepository, cache FlightCache, opts ...FlightServiceOption) *FlightService {
	s := &FlightService{
		repo:     repo,
		cache:    cache,
		location: time.UTC,
		now:      time.Now,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FlightService) Search(ctx context.Context, input SearchInput) ([]domain.Flight, error) {
	var fields []domain.FieldError
	from, to := strings.TrimSpace(input.From), strings.TrimSpace(input.To)
	if from == "" {
		fields = append(fields, domain.FieldError{Field: "from", Message: "from is required"})
	}
	if to == "" {
		fields = append(fields, domain.FieldError{Field: "to", Message: "to is required"})
	}

	var date domain.Date
	if strings.TrimSpace(input.DepartureDate) == "" {
		fields = append(fields, domain.FieldError{Field: "departureDate", Message: "departureDate is required"})
	} else {
		parsed, err := domain.ParseDate(input.DepartureDate)
		if err != nil {
			fields = append(fields, domain.FieldError{Field: "departureDate", Message: "departureDate must be a date (YYYY-MM-DD)"})
		}
		date = parsed
	}

	class := input.SeatClass
	if class == "" {
		class = domain.SeatClassEconomy
	}
	if !class.Valid() {
		fields = append(fields, domain.FieldError{Field: "class", Message: "class must be one of [economy business first]"})
	}
	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	seats := input.Passengers
	if seats < 1 {
		seats = 1
	}

	return s.repo.Search(ctx, repository.FlightSearch{
		From:      from,
		To:        to,
		Date:      date,
		SeatClass: class,
		MinSeats:  seats,
	})
}

func (s *FlightService) List(ctx context.Context, input ListInput, page domain.Page) (domain.PageResult[domain.Flight], error) {
	filter := repository.FlightFilter{
		Departure:     strings.TrimSpace(input.Departure),
		Arrival:       strings.TrimSpace(input.Arrival),
		DepartingFrom: domain.DateOf(s.now().In(s.location)),
	}
	if input.Date != "" {
		date, err := domain.ParseDate(input.Date)
		if err != nil {
			return domain.PageResult[domain.Flight]{}, domain.NewValidationError("date", "date must be a date (YYYY-MM-DD)")
		}
		filter.Date = date
	}

	page = domain.NewPage(page.Page, page.Limit)
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return domain.PageResult[domain.Flight]{}, err
	}
	return domain.PageResult[domain.Flight]{
		Items: items,
		Total: total,
		Page:  page.Page,
		Pages: page.Pages(total),
	}, nil
}

func (s *FlightService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flight, error) {
	if s.cache != nil {
		cached, err := s.cache.GetFlight(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("flight_id", id).Warn("flight cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	flight, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlight(ctx, flight); err != nil {
			s.logger.WithError(err).WithField("flight_id", id).Warn("flight cache write failed")
		}
	}
	return flight, nil
}

func (s *FlightService) Create(ctx context.Context, flight *domain.Flight) (*domain.Flight, error) {
	flight.ID = uuid.Nil
	flight.Normalize()
	if err := domain.ValidateFlight(flight); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		return nil, err
	}
	s.logger.WithField("flight_number", flight.FlightNumber).Info("flight created")
	return flight, nil
}

// Update loads the flight, lets apply change it and stores the result. apply may only touch
// the fields the caller supplied, which gives partial-update semantics.
func (s *FlightService) Update(ctx context.Context, id uuid.UUID, apply func(*domain.Flight) error) (*domain.Flight, error) {
	flight, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(flight); err != nil {
		return nil, err
	}
	flight.ID = id
	flight.Normalize()
	if err := domain.ValidateFlight(flight); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, flight); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return flight, nil
}

func (s *FlightService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.logger.WithField("flight_id", id).Info("flight deleted")
	return nil
}

func (s *FlightService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteFlight(ctx, id); err != nil {
		s.logger.WithError(err).WithField("flight_id", id).Warn("flight cache invalidation failed")
	}
}

var _ FlightUseCase = (*FlightService)(nil)

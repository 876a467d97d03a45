package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/airport-booking/internal/domain"
)

// FlightSearch is the exact-day route query behind flight search.
type FlightSearch struct {
	From      string
	To        string
	Date      domain.Date
	SeatClass domain.SeatClass
	MinSeats  int
}

// FlightFilter narrows the general flight listing. Zero fields are ignored.
type FlightFilter struct {
	Departure     string
	Arrival       string
	Date          domain.Date
	DepartingFrom domain.Date
}

type FlightRepository interface {
	Create(ctx context.Context, flight *domain.Flight) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flight, error)
	Update(ctx context.Context, flight *domain.Flight) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, q FlightSearch) ([]domain.Flight, error)
	List(ctx context.Context, filter FlightFilter, page domain.Page) ([]domain.Flight, int, error)
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

var flightColumns = []string{
	"id", "flight_number", "airline",
	"departure_airport", "departure_city", "departure_country", "departure_date", "departure_time",
	"arrival_airport", "arrival_city", "arrival_country", "arrival_date", "arrival_time",
	"duration", "aircraft",
	"capacity_total", "capacity_economy", "capacity_business", "capacity_first",
	"price_economy", "price_business", "price_first",
	"status", "gate", "created_at", "updated_at",
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func flightDest(f *domain.Flight) []any {
	return []any{
		&f.ID, &f.FlightNumber, &f.Airline,
		&f.Departure.Airport, &f.Departure.City, &f.Departure.Country, &f.Departure.Date, &f.Departure.Time,
		&f.Arrival.Airport, &f.Arrival.City, &f.Arrival.Country, &f.Arrival.Date, &f.Arrival.Time,
		&f.Duration, &f.Aircraft,
		&f.Capacity.Total, &f.Capacity.Economy, &f.Capacity.Business, &f.Capacity.First,
		&f.Price.Economy, &f.Price.Business, &f.Price.First,
		&f.Status, &f.Gate, &f.CreatedAt, &f.UpdatedAt,
	}
}

func flightValues(f *domain.Flight) map[string]any {
	return map[string]any{
		"flight_number":     f.FlightNumber,
		"airline":           f.Airline,
		"departure_airport": f.Departure.Airport,
		"departure_city":    f.Departure.City,
		"departure_country": f.Departure.Country,
		"departure_date":    f.Departure.Date,
		"departure_time":    f.Departure.Time,
		"arrival_airport":   f.Arrival.Airport,
		"arrival_city":      f.Arrival.City,
		"arrival_country":   f.Arrival.Country,
		"arrival_date":      f.Arrival.Date,
		"arrival_time":      f.Arrival.Time,
		"duration":          f.Duration,
		"aircraft":          f.Aircraft,
		"capacity_total":    f.Capacity.Total,
		"capacity_economy":  f.Capacity.Economy,
		"capacity_business": f.Capacity.Business,
		"capacity_first":    f.Capacity.First,
		"price_economy":     f.Price.Economy,
		"price_business":    f.Price.Business,
		"price_first":       f.Price.First,
		"status":            f.Status,
		"gate":              f.Gate,
	}
}

// capacityColumn only ever returns one of the three known column names.
func capacityColumn(class domain.SeatClass) string {
	switch class {
	case domain.SeatClassBusiness:
		return "capacity_business"
	case domain.SeatClassFirst:
		return "capacity_first"
	default:
		return "capacity_economy"
	}
}

// containsPattern builds an ILIKE pattern matching s anywhere, with LIKE metacharacters escaped.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}

func bookableStatuses() []string {
	out := make([]string, len(domain.BookableStatuses))
	for i, s := range domain.BookableStatuses {
		out[i] = string(s)
	}
	return out
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	if flight.ID == uuid.Nil {
		flight.ID = uuid.New()
	}
	values := flightValues(flight)
	values["id"] = flight.ID

	query, args, err := psql.Insert("flights").SetMap(values).Suffix("RETURNING created_at, updated_at").ToSql()
	if err != nil {
		return fmt.Errorf("build create flight sql: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&flight.CreatedAt, &flight.UpdatedAt); err != nil {
		return translate(err, "Flight not found")
	}
	return nil
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flight, error) {
	query, args, err := psql.Select(flightColumns...).From("flights").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get flight sql: %w", err)
	}
	var f domain.Flight
	if err := r.db.QueryRow(ctx, query, args...).Scan(flightDest(&f)...); err != nil {
		return nil, translate(err, "Flight not found")
	}
	return &f, nil
}

func (r *PGFlightRepository) Update(ctx context.Context, flight *domain.Flight) error {
	query, args, err := psql.Update("flights").
		SetMap(flightValues(flight)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": flight.ID}).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update flight sql: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&flight.CreatedAt, &flight.UpdatedAt); err != nil {
		return translate(err, "Flight not found")
	}
	return nil
}

func (r *PGFlightRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := psql.Delete("flights").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete flight sql: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return translate(err, "Flight not found")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("Flight not found")
	}
	return nil
}

func searchQuery(q FlightSearch) sq.SelectBuilder {
	minSeats := q.MinSeats
	if minSeats < 1 {
		minSeats = 1
	}
	return psql.Select(flightColumns...).
		From("flights").
		Where(sq.ILike{"departure_city": containsPattern(q.From)}).
		Where(sq.ILike{"arrival_city": containsPattern(q.To)}).
		Where(sq.Eq{"departure_date": q.Date}).
		Where(sq.Eq{"status": bookableStatuses()}).
		Where(sq.GtOrEq{capacityColumn(q.SeatClass): minSeats}).
		OrderBy("departure_date ASC", "departure_time ASC")
}

func (r *PGFlightRepository) Search(ctx context.Context, q FlightSearch) ([]domain.Flight, error) {
	query, args, err := searchQuery(q).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search flights sql: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search flights: %w", err)
	}
	return collectFlights(rows)
}

func listFilter(f FlightFilter) sq.And {
	cond := sq.And{sq.Eq{"status": bookableStatuses()}}
	if !f.DepartingFrom.IsZero() {
		cond = append(cond, sq.GtOrEq{"departure_date": f.DepartingFrom})
	}
	if f.Departure != "" {
		cond = append(cond, sq.ILike{"departure_city": containsPattern(f.Departure)})
	}
	if f.Arrival != "" {
		cond = append(cond, sq.ILike{"arrival_city": containsPattern(f.Arrival)})
	}
	if !f.Date.IsZero() {
		cond = append(cond, sq.Eq{"departure_date": f.Date})
	}
	return cond
}

func (r *PGFlightRepository) List(ctx context.Context, filter FlightFilter, page domain.Page) ([]domain.Flight, int, error) {
	cond := listFilter(filter)

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("flights").Where(cond).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count flights sql: %w", err)
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count flights: %w", err)
	}

	query, args, err := psql.Select(flightColumns...).
		From("flights").
		Where(cond).
		OrderBy("departure_date ASC", "departure_time ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list flights sql: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list flights: %w", err)
	}
	flights, err := collectFlights(rows)
	if err != nil {
		return nil, 0, err
	}
	return flights, total, nil
}

func collectFlights(rows pgx.Rows) ([]domain.Flight, error) {
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := rows.Scan(flightDest(&f)...); err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

var _ FlightRepository = (*PGFlightRepository)(nil)

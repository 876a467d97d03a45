package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/airport-booking/internal/domain"
)

type BookingFilter struct {
	Status   domain.BookingStatus
	FlightID uuid.UUID
}

// BookingWriter is the part of the store usable while a flight is locked.
type BookingWriter interface {
	CountConfirmedWithClass(ctx context.Context, flightID uuid.UUID, class domain.SeatClass) (int, error)
	Insert(ctx context.Context, booking *domain.Booking) error
}

type BookingRepository interface {
	// WithFlightLock runs fn in a transaction holding a row lock on the flight, so capacity
	// checks and inserts for one flight are serialized. fn's error rolls the transaction back.
	WithFlightLock(ctx context.Context, flightID uuid.UUID, fn func(ctx context.Context, w BookingWriter) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	List(ctx context.Context, filter BookingFilter, page domain.Page) ([]domain.Booking, int, error)
	ListConfirmedByFlight(ctx context.Context, flightID uuid.UUID) ([]domain.Booking, error)
	// Cancel flips a booking to cancelled/refunded unless it already is cancelled.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) error
	CountByStatus(ctx context.Context) (map[domain.BookingStatus]int64, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

var bookingColumns = []string{
	"b.id", "b.reference", "b.user_id", "b.flight_id", "b.passengers",
	"b.contact_email", "b.contact_phone", "b.total_amount", "b.payment_status", "b.status",
	"b.special_requests", "b.created_at", "b.updated_at",
}

var userSummaryColumns = []string{"u.id", "u.name", "u.email"}

type bookingJoin struct {
	flight bool
	user   bool
}

func (j bookingJoin) selectBuilder() sq.SelectBuilder {
	cols := append([]string{}, bookingColumns...)
	if j.flight {
		cols = append(cols, prefixed("f", flightColumns)...)
	}
	if j.user {
		cols = append(cols, userSummaryColumns...)
	}
	q := psql.Select(cols...).From("bookings b")
	if j.flight {
		q = q.Join("flights f ON f.id = b.flight_id")
	}
	if j.user {
		q = q.Join("users u ON u.id = b.user_id")
	}
	return q
}

func (j bookingJoin) scan(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	dest := []any{
		&b.ID, &b.Reference, &b.UserID, &b.FlightID, &b.Passengers,
		&b.Contact.Email, &b.Contact.Phone, &b.TotalAmount, &b.PaymentStatus, &b.Status,
		&b.SpecialRequests, &b.CreatedAt, &b.UpdatedAt,
	}
	if j.flight {
		b.Flight = &domain.Flight{}
		dest = append(dest, flightDest(b.Flight)...)
	}
	if j.user {
		b.User = &domain.UserSummary{}
		dest = append(dest, &b.User.ID, &b.User.Name, &b.User.Email)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &b, nil
}

func (j bookingJoin) collect(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := j.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) WithFlightLock(ctx context.Context, flightID uuid.UUID, fn func(ctx context.Context, w BookingWriter) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM flights WHERE id = $1 FOR UPDATE`, flightID).Scan(&locked); err != nil {
		return translate(err, "Flight not found")
	}

	if err := fn(ctx, &pgBookingWriter{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

type pgBookingWriter struct {
	tx pgx.Tx
}

// classContainment matches bookings holding at least one passenger of class.
func classContainment(class domain.SeatClass) (string, error) {
	payload, err := json.Marshal([]map[string]domain.SeatClass{{"seatClass": class}})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func countConfirmedQuery(flightID uuid.UUID, class domain.SeatClass) (string, []any, error) {
	containment, err := classContainment(class)
	if err != nil {
		return "", nil, err
	}
	return psql.Select("COUNT(*)").
		From("bookings").
		Where(sq.Eq{"flight_id": flightID, "status": domain.BookingStatusConfirmed}).
		Where(sq.Expr("passengers @> ?::jsonb", containment)).
		ToSql()
}

func (w *pgBookingWriter) CountConfirmedWithClass(ctx context.Context, flightID uuid.UUID, class domain.SeatClass) (int, error) {
	query, args, err := countConfirmedQuery(flightID, class)
	if err != nil {
		return 0, fmt.Errorf("build count bookings sql: %w", err)
	}
	var count int
	if err := w.tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count confirmed bookings: %w", err)
	}
	return count, nil
}

func (w *pgBookingWriter) Insert(ctx context.Context, b *domain.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	query, args, err := psql.Insert("bookings").
		SetMap(map[string]any{
			"id":               b.ID,
			"reference":        b.Reference,
			"user_id":          b.UserID,
			"flight_id":        b.FlightID,
			"passengers":       b.Passengers,
			"contact_email":    b.Contact.Email,
			"contact_phone":    b.Contact.Phone,
			"total_amount":     b.TotalAmount,
			"payment_status":   b.PaymentStatus,
			"status":           b.Status,
			"special_requests": b.SpecialRequests,
		}).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking sql: %w", err)
	}
	if err := w.tx.QueryRow(ctx, query, args...).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return translate(err, "Booking not found")
	}
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	j := bookingJoin{flight: true, user: true}
	query, args, err := j.selectBuilder().Where(sq.Eq{"b.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking sql: %w", err)
	}
	b, err := j.scan(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translate(err, "Booking not found")
	}
	return b, nil
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	j := bookingJoin{flight: true}
	query, args, err := j.selectBuilder().
		Where(sq.Eq{"b.user_id": userID}).
		OrderBy("b.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user bookings sql: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return j.collect(rows)
}

func bookingFilter(f BookingFilter) sq.Eq {
	cond := sq.Eq{}
	if f.Status != "" {
		cond["b.status"] = f.Status
	}
	if f.FlightID != uuid.Nil {
		cond["b.flight_id"] = f.FlightID
	}
	return cond
}

func (r *PGBookingRepository) List(ctx context.Context, filter BookingFilter, page domain.Page) ([]domain.Booking, int, error) {
	cond := bookingFilter(filter)

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("bookings b").Where(cond).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count bookings sql: %w", err)
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	j := bookingJoin{flight: true, user: true}
	query, args, err := j.selectBuilder().
		Where(cond).
		OrderBy("b.created_at DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings sql: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	bookings, err := j.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *PGBookingRepository) ListConfirmedByFlight(ctx context.Context, flightID uuid.UUID) ([]domain.Booking, error) {
	j := bookingJoin{user: true}
	query, args, err := j.selectBuilder().
		Where(sq.Eq{"b.flight_id": flightID, "b.status": domain.BookingStatusConfirmed}).
		OrderBy("b.created_at ASC", "b.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build flight bookings sql: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list flight bookings: %w", err)
	}
	return j.collect(rows)
}

func (r *PGBookingRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	query, args, err := psql.Update("bookings").
		Set("status", domain.BookingStatusCancelled).
		Set("payment_status", domain.PaymentStatusRefunded).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": domain.BookingStatusCancelled}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cancel booking sql: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.InvalidState("Booking is already cancelled")
	}
	return nil
}

func (r *PGBookingRepository) CountByStatus(ctx context.Context) (map[domain.BookingStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count bookings by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.BookingStatus]int64)
	for rows.Next() {
		var status domain.BookingStatus
		var cnt int64
		if err := rows.Scan(&status, &cnt); err != nil {
			return nil, fmt.Errorf("scan booking status count: %w", err)
		}
		counts[status] = cnt
	}
	return counts, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)

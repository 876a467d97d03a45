package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/airport-booking/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context) ([]domain.User, error)
}

type PGUserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &PGUserRepository{db: db}
}

var userColumns = []string{"id", "name", "email", "password_hash", "role", "phone", "date_of_birth", "created_at", "updated_at"}

func userDest(u *domain.User) []any {
	return []any{&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Phone, &u.DateOfBirth, &u.CreatedAt, &u.UpdatedAt}
}

func (r *PGUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query, args, err := psql.Insert("users").
		SetMap(map[string]any{
			"id":            user.ID,
			"name":          user.Name,
			"email":         strings.ToLower(user.Email),
			"password_hash": user.PasswordHash,
			"role":          user.Role,
			"phone":         user.Phone,
			"date_of_birth": user.DateOfBirth,
		}).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create user sql: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return translate(err, "User not found")
	}
	return nil
}

func (r *PGUserRepository) get(ctx context.Context, cond sq.Sqlizer) (*domain.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(cond).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user sql: %w", err)
	}
	var u domain.User
	if err := r.db.QueryRow(ctx, query, args...).Scan(userDest(&u)...); err != nil {
		return nil, translate(err, "User not found")
	}
	return &u, nil
}

func (r *PGUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.get(ctx, sq.Eq{"id": id})
}

func (r *PGUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *PGUserRepository) Update(ctx context.Context, user *domain.User) error {
	query, args, err := psql.Update("users").
		Set("name", user.Name).
		Set("phone", user.Phone).
		Set("date_of_birth", user.DateOfBirth).
		Set("password_hash", user.PasswordHash).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": user.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&user.UpdatedAt); err != nil {
		return translate(err, "User not found")
	}
	return nil
}

func (r *PGUserRepository) List(ctx context.Context) ([]domain.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(userDest(&u)...); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

var _ UserRepository = (*PGUserRepository)(nil)

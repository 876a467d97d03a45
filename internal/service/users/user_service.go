package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/auth"
	"github.com/Domenick1991/airport-booking/internal/domain"
	"github.com/Domenick1991/airport-booking/internal/policy"
	"github.com/Domenick1991/airport-booking/internal/repository"
)

type UserUseCase interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Profile(ctx context.Context, identity policy.Identity) (*domain.User, error)
	UpdateProfile(ctx context.Context, identity policy.Identity, input UpdateProfileInput) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Identity(ctx context.Context, userID uuid.UUID) (policy.Identity, error)
}

// Tokens issues access tokens for authenticated users.
type Tokens interface {
	Issue(userID uuid.UUID, role domain.Role) (string, error)
}

type RegisterInput struct {
	Name        string      `json:"name" validate:"required"`
	Email       string      `json:"email" validate:"required,email"`
	Password    string      `json:"password" validate:"required,min=6"`
	Phone       string      `json:"phone"`
	DateOfBirth domain.Date `json:"dateOfBirth"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput changes only the fields that are set.
type UpdateProfileInput struct {
	Name        *string      `json:"name" validate:"omitempty,min=1"`
	Phone       *string      `json:"phone"`
	DateOfBirth *domain.Date `json:"dateOfBirth"`
	Password    *string      `json:"password" validate:"omitempty,min=6"`
}

type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type UserService struct {
	repo   repository.UserRepository
	tokens Tokens
	logger logrus.FieldLogger
}

func NewUserService(repo repository.UserRepository, tokens Tokens, logger logrus.FieldLogger) *UserService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserService{repo: repo, tokens: tokens, logger: logger}
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Phone:        input.Phone,
		DateOfBirth:  input.DateOfBirth,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", user.ID).Info("user registered")
	return s.authenticated(user)
}

func (s *UserService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Unauthorized("Invalid email or password")
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		return nil, domain.Unauthorized("Invalid email or password")
	}
	return s.authenticated(user)
}

func (s *UserService) authenticated(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Identity returns the stored role of userID, so a role change or a deleted account takes
// effect before the token expires.
func (s *UserService) Identity(ctx context.Context, userID uuid.UUID) (policy.Identity, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return policy.Identity{}, domain.Unauthorized("Not authorized, user not found")
		}
		return policy.Identity{}, err
	}
	return policy.Identity{UserID: user.ID, Role: user.Role}, nil
}

func (s *UserService) Profile(ctx context.Context, identity policy.Identity) (*domain.User, error) {
	return s.repo.GetByID(ctx, identity.UserID)
}

func (s *UserService) UpdateProfile(ctx context.Context, identity policy.Identity, input UpdateProfileInput) (*domain.User, error) {
	if err := domain.Validate(input); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.DateOfBirth != nil {
		user.DateOfBirth = *input.DateOfBirth
	}
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

var _ UserUseCase = (*UserService)(nil)

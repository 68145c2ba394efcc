package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workloy/workloy/internal/models"
)

// Service errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid role")
)

// Service handles user accounts and roles
type Service struct {
	db *pgxpool.Pool
}

// NewService creates a new user service
func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// RegisterRequest represents a first-sign-in registration
type RegisterRequest struct {
	Email    string      `json:"email" binding:"required,email"`
	Name     string      `json:"name" binding:"required"`
	Role     models.Role `json:"role" binding:"required"`
	ImageURL *string     `json:"image_url,omitempty"`
}

// RegisterResponse reports whether a new account was created
type RegisterResponse struct {
	User     *models.User `json:"user"`
	Inserted bool         `json:"inserted"`
}

// Register creates the account on first sign-in with the role's starting
// balance. Replaying a registration leaves the existing account untouched
// apart from its last_log_in: the signup grant is issued at most once, which
// the single INSERT ... ON CONFLICT guarantees without a prior existence read.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	if req.Role != models.RoleWorker && req.Role != models.RoleBuyer {
		return nil, ErrInvalidRole
	}

	var u models.User
	var inserted bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (email, name, role, coins, image_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET last_log_in = NOW()
		RETURNING id, email, name, role, coins, coins_locked, image_url,
		          created_at, last_log_in, (xmax = 0)
	`, req.Email, req.Name, req.Role, req.Role.StartingCoins(), req.ImageURL).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Coins, &u.CoinsLocked,
		&u.ImageURL, &u.CreatedAt, &u.LastLogIn, &inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return &RegisterResponse{User: &u, Inserted: inserted}, nil
}

// GetByEmail retrieves a user by email
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
		SELECT id, email, name, role, coins, coins_locked, image_url, created_at, last_log_in
		FROM users WHERE email = $1
	`, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Coins, &u.CoinsLocked,
		&u.ImageURL, &u.CreatedAt, &u.LastLogIn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetRole retrieves the stored role for an email. Authorization guards call
// this per request; role claims carried in tokens are never trusted.
func (s *Service) GetRole(ctx context.Context, email string) (models.Role, error) {
	var role models.Role
	err := s.db.QueryRow(ctx, `
		SELECT role FROM users WHERE email = $1
	`, email).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// List retrieves all users, newest first
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, email, name, role, coins, coins_locked, image_url, created_at, last_log_in
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		err := rows.Scan(
			&u.ID, &u.Email, &u.Name, &u.Role, &u.Coins, &u.CoinsLocked,
			&u.ImageURL, &u.CreatedAt, &u.LastLogIn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// UpdateProfile updates a user's own name and image
func (s *Service) UpdateProfile(ctx context.Context, email string, name, imageURL *string) (*models.User, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET name = COALESCE($1, name),
		    image_url = COALESCE($2, image_url),
		    last_log_in = NOW()
		WHERE email = $3
	`, name, imageURL, email)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetByEmail(ctx, email)
}

// UpdateRole changes a user's role (admin operation)
func (s *Service) UpdateRole(ctx context.Context, userID uuid.UUID, role models.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET role = $1 WHERE id = $2
	`, role, userID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user by ID (admin operation). Tasks owned by the user go
// with it via the foreign key cascade.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM users WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pantrypal/users-api/internal/models"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, input models.UserCreate) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	UpdateUser(ctx context.Context, id int64, input models.UserUpdate) error
	DeleteUser(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// UserService stores users in the users table. Every method is a single statement.
type UserService struct {
	db *sql.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

var _ UserServiceProvider = (*UserService)(nil)

// CreateUser inserts a user and returns it with the store-assigned ID.
// A taken handle yields ErrUserExists and leaves the table untouched.
func (s *UserService) CreateUser(ctx context.Context, input models.UserCreate) (models.User, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (`user`, password, full_name, profile_picture) VALUES (?, ?, ?, ?)",
		input.Handle, input.Password, input.FullName, input.ProfilePicture)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("read inserted id: %w", err)
	}

	return models.User{
		ID:             id,
		Handle:         input.Handle,
		Password:       input.Password,
		FullName:       input.FullName,
		ProfilePicture: input.ProfilePicture,
	}, nil
}

// ListUsers returns every user ordered by ID.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, `user`, password, full_name, profile_picture FROM users ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Handle, &user.Password, &user.FullName, &user.ProfilePicture); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, `user`, password, full_name, profile_picture FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Handle, &user.Password, &user.FullName, &user.ProfilePicture)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// UpdateUser replaces the password, full name and profile picture of a user.
func (s *UserService) UpdateUser(ctx context.Context, id int64, input models.UserUpdate) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password = ?, full_name = ?, profile_picture = ? WHERE id = ?",
		input.Password, input.FullName, input.ProfilePicture, id)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	return requireOneRow(res)
}

// DeleteUser removes a user from the database.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return requireOneRow(res)
}

// CountUsers returns the number of stored users.
func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Ping reports whether the store is reachable.
func (s *UserService) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// requireOneRow turns an unconditional statement that matched nothing into ErrUserNotFound.
func requireOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

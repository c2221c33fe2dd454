package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/infrastructure/postgres/generated"
	"github.com/iho/badbank/internal/usecase"
)

const (
	pgErrUniqueViolation    = "23505"
	usersUsernameConstraint = "users_username_key"
)

// UserRepository implements user persistence
type UserRepository struct {
	queries *generated.Queries
}

// NewUserRepository creates a new user repository
func NewUserRepository(db generated.DBTX) *UserRepository {
	return &UserRepository{queries: generated.New(db)}
}

// CreateTx inserts a new user inside tx. Unique violations surface as
// domain.ErrUserExists or domain.ErrUsernameTaken.
func (r *UserRepository) CreateTx(ctx context.Context, tx usecase.Transaction, user *domain.User) error {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	err = r.queries.WithTx(pgxTx).CreateUser(ctx, generated.CreateUserParams{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    timeToPgTimestamptz(user.CreatedAt),
		UpdatedAt:    timeToPgTimestamptz(user.UpdatedAt),
	})

	return mapUserWriteError(err)
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row, err := r.queries.GetUserByID(ctx, id)
	return rowToUser(row, err)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row, err := r.queries.GetUserByEmail(ctx, email)
	return rowToUser(row, err)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row, err := r.queries.GetUserByUsername(ctx, username)
	return rowToUser(row, err)
}

func rowToUser(row generated.User, err error) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return &domain.User{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}, nil
}

func mapUserWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		if pgErr.ConstraintName == usersUsernameConstraint {
			return domain.ErrUsernameTaken
		}
		return domain.ErrUserExists
	}
	return err
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iho/badbank/internal/domain"
	"github.com/iho/badbank/internal/infrastructure/metrics"
)

// UserUseCase handles signup and login.
type UserUseCase struct {
	txManager   TransactionManager
	userRepo    UserRepository
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	hasher      PasswordHasher
	tokens      TokenIssuer
	userIDGen   IDGenerator
	eventIDGen  IDGenerator
	metrics     *metrics.Metrics
}

// NewUserUseCase creates a new user use case
func NewUserUseCase(
	txManager TransactionManager,
	userRepo UserRepository,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	userIDGen IDGenerator,
	eventIDGen IDGenerator,
	m *metrics.Metrics,
) *UserUseCase {
	return &UserUseCase{
		txManager:   txManager,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		hasher:      hasher,
		tokens:      tokens,
		userIDGen:   userIDGen,
		eventIDGen:  eventIDGen,
		metrics:     m,
	}
}

// SignupInput represents input for registering a user
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Signup registers a user and opens their zero-balance account in one
// database transaction.
func (uc *UserUseCase) Signup(ctx context.Context, input SignupInput) (user *domain.User, err error) {
	defer func() { uc.recordAuth("signup", err) }()

	username := strings.TrimSpace(input.Username)
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(input.Email)

	if err := uc.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := uc.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user = &domain.User{
		ID:           uc.userIDGen.Generate(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := uc.userRepo.CreateTx(ctx, tx, user); err != nil {
		return nil, err
	}
	if err := uc.accountRepo.CreateTx(ctx, tx, domain.NewAccount(user.ID, now)); err != nil {
		return nil, err
	}
	if err := uc.outboxRepo.Create(ctx, tx, domain.NewAccountOpenedEvent(uc.eventIDGen.Generate(), user)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsOpened.Inc()
	}

	// Don't return password hash
	user.PasswordHash = ""
	return user, nil
}

func (uc *UserUseCase) ensureAvailable(ctx context.Context, username, email string) error {
	existing, err := uc.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return domain.ErrUserExists
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return err
	}

	existing, err = uc.userRepo.GetByUsername(ctx, username)
	switch {
	case err == nil && existing != nil:
		return domain.ErrUsernameTaken
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return err
	}

	return nil
}

// LoginInput represents authentication input
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	User  *domain.User
}

// Login verifies credentials and issues a session token.
func (uc *UserUseCase) Login(ctx context.Context, input LoginInput) (result *LoginResult, err error) {
	defer func() { uc.recordAuth("login", err) }()

	user, err := uc.userRepo.GetByEmail(ctx, domain.NormalizeEmail(input.Email))
	if err != nil {
		return nil, err
	}

	if err := uc.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := uc.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &LoginResult{Token: token, User: user}, nil
}

// GetUser retrieves a user by ID
func (uc *UserUseCase) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := uc.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

func (uc *UserUseCase) recordAuth(kind string, err error) {
	if uc.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	uc.metrics.AuthAttempts.WithLabelValues(kind, status).Inc()
}

package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/auth"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/logging"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/repository"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	hasLetter    = regexp.MustCompile(`[A-Za-z]`)
	hasDigit     = regexp.MustCompile(`[0-9]`)
)

// AccountStore defines the user persistence needed by AccountUseCase.
type AccountStore interface {
	Create(ctx context.Context, user *repository.User) error
	FindByID(ctx context.Context, id uint) (*repository.User, error)
	FindByEmail(ctx context.Context, email string) (*repository.User, error)
	UpdatePassword(ctx context.Context, id uint, hash string) error
}

// TokenIssuer signs session and password reset tokens.
type TokenIssuer interface {
	IssueSession(s auth.SessionContext) (string, error)
	IssueReset(email string) (string, error)
	ParseReset(token string) (string, error)
}

// AdminCredentials are the configured administrator login.
type AdminCredentials struct {
	Email    string
	Password string
}

// AccountUseCase implements registration, login and password recovery.
type AccountUseCase struct {
	users    AccountStore
	tokens   TokenIssuer
	admin    AdminCredentials
	hashCost int
	logger   *zap.Logger
}

// NewAccountUseCase constructs a new account use case.
func NewAccountUseCase(users AccountStore, tokens TokenIssuer, admin AdminCredentials, logger *zap.Logger) *AccountUseCase {
	return &AccountUseCase{
		users:    users,
		tokens:   tokens,
		admin:    admin,
		hashCost: bcrypt.DefaultCost,
		logger:   logger.Named("account_usecase"),
	}
}

// Register validates and stores a new user.
func (uc *AccountUseCase) Register(ctx context.Context, name, email, password string) (*repository.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)

	if name == "" || email == "" || password == "" {
		return nil, invalid("all fields are required")
	}
	if len(name) < 3 {
		return nil, invalid("name must be at least 3 characters long")
	}
	if !emailPattern.MatchString(email) {
		return nil, invalid("invalid email format")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.hashCost)
	if err != nil {
		return nil, logging.NewOperationError("usecase.register", "", err)
	}

	user := &repository.User{Name: name, Email: email, PasswordHash: string(hash)}
	if err := uc.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, &ValidationError{Kind: repository.ErrEmailTaken, Message: "user already exists"}
		}
		logging.WithOperation(uc.logger, "usecase.register", "").Error("failed to create user", zap.Error(err))
		return nil, &StorageError{Operation: "create user", Err: err}
	}

	uc.logger.Info("user registered", zap.Uint("user_id", user.ID))
	return user, nil
}

// Login checks credentials and issues a session token.
func (uc *AccountUseCase) Login(ctx context.Context, email, password string) (string, *repository.User, error) {
	user, err := uc.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, &StorageError{Operation: "find user", Err: err}
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := uc.tokens.IssueSession(auth.SessionContext{UserID: user.ID})
	if err != nil {
		return "", nil, logging.NewOperationError("usecase.login", "", err)
	}
	return token, user, nil
}

// AdminLogin checks the configured administrator credentials.
func (uc *AccountUseCase) AdminLogin(_ context.Context, email, password string) (string, error) {
	if uc.admin.Email == "" || uc.admin.Password == "" {
		return "", ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(email)), []byte(normalizeEmail(uc.admin.Email))) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(uc.admin.Password)) == 1
	if !emailOK || !passwordOK {
		uc.logger.Warn("admin login rejected")
		return "", ErrInvalidCredentials
	}

	token, err := uc.tokens.IssueSession(auth.SessionContext{Admin: true})
	if err != nil {
		return "", logging.NewOperationError("usecase.admin_login", "", err)
	}
	return token, nil
}

// ForgotPassword returns a one-hour reset token for a registered email.
func (uc *AccountUseCase) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := uc.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", err
		}
		return "", &StorageError{Operation: "find user", Err: err}
	}

	token, err := uc.tokens.IssueReset(user.Email)
	if err != nil {
		return "", logging.NewOperationError("usecase.forgot_password", "", err)
	}
	return token, nil
}

// ResetPassword replaces the password of the user a reset token was issued for.
func (uc *AccountUseCase) ResetPassword(ctx context.Context, token, password string) error {
	email, err := uc.tokens.ParseReset(token)
	if err != nil {
		return ErrInvalidResetToken
	}
	password = strings.TrimSpace(password)
	if err := validatePassword(password); err != nil {
		return err
	}

	user, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return &StorageError{Operation: "find user", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.hashCost)
	if err != nil {
		return logging.NewOperationError("usecase.reset_password", "", err)
	}
	if err := uc.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return &StorageError{Operation: "update password", Err: err}
	}
	uc.logger.Info("password reset", zap.Uint("user_id", user.ID))
	return nil
}

// CurrentUser loads the user behind a session.
func (uc *AccountUseCase) CurrentUser(ctx context.Context, session auth.SessionContext) (*repository.User, error) {
	if !session.IsUser() {
		return nil, repository.ErrUserNotFound
	}
	return uc.users.FindByID(ctx, session.UserID)
}

func validatePassword(password string) error {
	if len(password) < 6 {
		return invalid("password must be at least 6 characters long")
	}
	if !hasLetter.MatchString(password) || !hasDigit.MatchString(password) {
		return invalid("password must contain letters and numbers")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

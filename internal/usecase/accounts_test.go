package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/auth"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/repository"
)

type memAccounts struct {
	byID    map[uint]*repository.User
	nextID  uint
	findErr error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[uint]*repository.User{}}
}

func (m *memAccounts) Create(ctx context.Context, user *repository.User) error {
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	m.nextID++
	user.ID = m.nextID
	copied := *user
	m.byID[user.ID] = &copied
	return nil
}

func (m *memAccounts) FindByID(ctx context.Context, id uint) (*repository.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memAccounts) FindByEmail(ctx context.Context, email string) (*repository.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memAccounts) UpdatePassword(ctx context.Context, id uint, hash string) error {
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func newAccountUseCase(t *testing.T) (*AccountUseCase, *memAccounts, *auth.TokenManager) {
	t.Helper()

	store := newMemAccounts()
	tokens := auth.NewTokenManager("test-secret", "", time.Hour)
	uc := NewAccountUseCase(store, tokens, AdminCredentials{Email: "admin@example.com", Password: "admin123"}, zap.NewNop())
	uc.hashCost = bcrypt.MinCost
	return uc, store, tokens
}

func TestRegisterValidation(t *testing.T) {
	uc, _, _ := newAccountUseCase(t)
	ctx := context.Background()

	if _, err := uc.Register(ctx, "Alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}

	cases := []struct {
		name, user, email, password string
		kind                        error
	}{
		{"missing fields", "", "bob@example.com", "secret1", ErrInvalidInput},
		{"short name", "Bo", "bob@example.com", "secret1", ErrInvalidInput},
		{"bad email", "Bob", "bob-at-example", "secret1", ErrInvalidInput},
		{"short password", "Bob", "bob@example.com", "a1", ErrInvalidInput},
		{"letters only", "Bob", "bob@example.com", "secretpw", ErrInvalidInput},
		{"digits only", "Bob", "bob@example.com", "123456", ErrInvalidInput},
		{"duplicate email", "Alice Two", "ALICE@example.com", "secret2", repository.ErrEmailTaken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Register(ctx, tc.user, tc.email, tc.password)
			var vErr *ValidationError
			if !errors.As(err, &vErr) || !errors.Is(err, tc.kind) {
				t.Fatalf("expected validation error %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	uc, store, _ := newAccountUseCase(t)

	user, err := uc.Register(context.Background(), " Alice ", " Alice@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	stored := store.byID[user.ID]
	if stored.Name != "Alice" || stored.Email != "alice@example.com" {
		t.Fatalf("expected trimmed fields, got %+v", stored)
	}
	if stored.PasswordHash == "secret1" {
		t.Fatal("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("expected hash to match password: %v", err)
	}
}

func TestLogin(t *testing.T) {
	uc, _, tokens := newAccountUseCase(t)
	ctx := context.Background()

	registered, err := uc.Register(ctx, "Alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, user, err := uc.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("expected user %d, got %d", registered.ID, user.ID)
	}
	s, err := tokens.ParseSession(token)
	if err != nil || s.UserID != registered.ID || s.Admin {
		t.Fatalf("unexpected session %+v (%v)", s, err)
	}

	if _, _, err := uc.Login(ctx, "alice@example.com", "wrong1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := uc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginStorageFailure(t *testing.T) {
	uc, store, _ := newAccountUseCase(t)
	store.findErr = errors.New("db down")

	_, _, err := uc.Login(context.Background(), "alice@example.com", "secret1")
	var sErr *StorageError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	uc, _, tokens := newAccountUseCase(t)
	ctx := context.Background()

	token, err := uc.AdminLogin(ctx, "admin@example.com", "admin123")
	if err != nil {
		t.Fatalf("expected admin login to succeed, got %v", err)
	}
	s, err := tokens.ParseSession(token)
	if err != nil || !s.Admin {
		t.Fatalf("expected admin session, got %+v (%v)", s, err)
	}

	if _, err := uc.AdminLogin(ctx, "admin@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	uc.admin = AdminCredentials{}
	if _, err := uc.AdminLogin(ctx, "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected unconfigured admin to be rejected, got %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	uc, _, tokens := newAccountUseCase(t)
	ctx := context.Background()

	if _, err := uc.Register(ctx, "Alice", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := uc.ForgotPassword(ctx, "nobody@example.com"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	token, err := uc.ForgotPassword(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("expected reset token, got %v", err)
	}

	if err := uc.ResetPassword(ctx, token, "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected weak password to be rejected, got %v", err)
	}
	if err := uc.ResetPassword(ctx, "garbage", "newpass2"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken, got %v", err)
	}

	session, err := tokens.IssueSession(auth.SessionContext{UserID: 1})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if err := uc.ResetPassword(ctx, session, "newpass2"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected session token to be rejected, got %v", err)
	}

	if err := uc.ResetPassword(ctx, token, "newpass2"); err != nil {
		t.Fatalf("expected reset to succeed, got %v", err)
	}
	if _, _, err := uc.Login(ctx, "alice@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to stop working, got %v", err)
	}
	if _, _, err := uc.Login(ctx, "alice@example.com", "newpass2"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
}

func TestCurrentUser(t *testing.T) {
	uc, _, _ := newAccountUseCase(t)
	ctx := context.Background()

	user, err := uc.Register(ctx, "Alice", "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := uc.CurrentUser(ctx, auth.SessionContext{UserID: user.ID})
	if err != nil || got.Email != "alice@example.com" {
		t.Fatalf("unexpected current user %+v (%v)", got, err)
	}
	if _, err := uc.CurrentUser(ctx, auth.SessionContext{Admin: true}); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for admin session, got %v", err)
	}
}

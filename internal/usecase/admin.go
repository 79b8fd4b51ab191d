package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/repository"
)

// UsersPerPage is the admin user list page size.
const UsersPerPage = 5

// UserAdminStore lists and removes users.
type UserAdminStore interface {
	List(ctx context.Context, search string, page, perPage int) ([]repository.User, int64, error)
	Delete(ctx context.Context, id uint) error
}

// ClassificationReader exposes the cross-user record views.
type ClassificationReader interface {
	ListAll(ctx context.Context, limit int) ([]repository.OwnedClassification, error)
	AggregateStats(ctx context.Context) (*repository.ClassificationStats, error)
}

// UserPage is one page of the admin user list.
type UserPage struct {
	Users      []repository.User `json:"users"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// AdminUseCase serves the administrator views.
type AdminUseCase struct {
	users   UserAdminStore
	records ClassificationReader
	logger  *zap.Logger
}

// NewAdminUseCase constructs a new admin use case.
func NewAdminUseCase(users UserAdminStore, records ClassificationReader, logger *zap.Logger) *AdminUseCase {
	return &AdminUseCase{users: users, records: records, logger: logger.Named("admin_usecase")}
}

// ListUsers returns one page of users whose name contains search.
func (uc *AdminUseCase) ListUsers(ctx context.Context, search string, page int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	users, total, err := uc.users.List(ctx, search, page, UsersPerPage)
	if err != nil {
		return nil, &StorageError{Operation: "list users", Err: err}
	}
	if users == nil {
		users = []repository.User{}
	}
	return &UserPage{
		Users:      users,
		Page:       page,
		PerPage:    UsersPerPage,
		Total:      total,
		TotalPages: int((total + UsersPerPage - 1) / UsersPerPage),
	}, nil
}

// DeleteUser removes a user and, through the cascade, their records.
func (uc *AdminUseCase) DeleteUser(ctx context.Context, id uint) error {
	if err := uc.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return err
		}
		return &StorageError{Operation: "delete user", Err: err}
	}
	uc.logger.Info("user deleted", zap.Uint("user_id", id))
	return nil
}

// ListClassifications returns every record with its owner, newest first.
func (uc *AdminUseCase) ListClassifications(ctx context.Context, limit int) ([]repository.OwnedClassification, error) {
	records, err := uc.records.ListAll(ctx, limit)
	if err != nil {
		return nil, &StorageError{Operation: "list classifications", Err: err}
	}
	if records == nil {
		records = []repository.OwnedClassification{}
	}
	return records, nil
}

package repository

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/logging"
)

// UserRepository provides persistence APIs for accounts.
type UserRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *gorm.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger.Named("user_repository")}
}

// Create inserts a user, returning ErrEmailTaken for a duplicate email.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return logging.NewOperationError("repository.create_user", "", err)
	}
	return nil
}

// FindByID retrieves a user or ErrUserNotFound.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, r.notFound("repository.find_user", err)
	}
	return &user, nil
}

// FindByEmail retrieves a user by exact email or ErrUserNotFound.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, r.notFound("repository.find_user_by_email", err)
	}
	return &user, nil
}

// UpdatePassword replaces the stored hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return logging.NewOperationError("repository.update_password", "", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List pages through users, optionally filtering by a name substring.
// page is 1-based.
func (r *UserRepository) List(ctx context.Context, search string, page, perPage int) ([]User, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 5
	}

	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&User{})
		if s := strings.TrimSpace(search); s != "" {
			q = q.Where("name LIKE ?", "%"+s+"%")
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, logging.NewOperationError("repository.count_users", "", err)
	}

	users := []User{}
	if err := filtered().Order("id ASC").Offset((page - 1) * perPage).Limit(perPage).Find(&users).Error; err != nil {
		return nil, 0, logging.NewOperationError("repository.list_users", "", err)
	}
	return users, total, nil
}

// Delete removes a user; the schema cascades the delete to classification records.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&User{}, id)
	if res.Error != nil {
		return logging.NewOperationError("repository.delete_user", "", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	r.logger.Info("user deleted", zap.Uint("user_id", id))
	return nil
}

func (r *UserRepository) notFound(operation string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return logging.NewOperationError(operation, "", err)
}

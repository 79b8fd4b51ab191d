package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/logging"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/retry"
)

// historyOrder is newest first with insertion order breaking timestamp ties.
var historyOrder = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Table: "classification_results", Name: "timestamp"}, Desc: true},
	{Column: clause.Column{Table: "classification_results", Name: "id"}, Desc: true},
}}

// ClassificationRepository persists classification records.
type ClassificationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	retry  retry.Policy
	now    func() time.Time
}

// NewClassificationRepository creates a new repository instance.
func NewClassificationRepository(db *gorm.DB, logger *zap.Logger) *ClassificationRepository {
	return &ClassificationRepository{
		db:     db,
		logger: logger.Named("classification_repository"),
		retry:  retry.DefaultPolicy,
		now:    time.Now,
	}
}

// Create appends a record owned by userID and returns its id. The timestamp is
// assigned here. Writes are attempted once; an unknown owner yields ErrUserNotFound.
func (r *ClassificationRepository) Create(ctx context.Context, userID uint, originalImage string, processedImage *string, confidence float64, label string) (uint, error) {
	record := &ClassificationResult{
		UserID:          userID,
		OriginalImage:   originalImage,
		ProcessedImage:  processedImage,
		ConfidenceScore: confidence,
		LogoStatus:      label,
		Timestamp:       r.now().UTC().Truncate(time.Microsecond),
	}

	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if isForeignKeyViolation(err) {
			err = fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
		}
		wrapped := logging.NewOperationError("repository.create_classification", "", err)
		r.logger.Error("failed to persist classification", zap.Error(wrapped), zap.Uint("user_id", userID))
		return 0, wrapped
	}
	return record.ID, nil
}

// ListByUser returns a user's records, newest first. limit <= 0 means no limit.
// A user without records yields an empty, non-nil slice.
func (r *ClassificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]ClassificationResult, error) {
	records := []ClassificationResult{}
	err := r.executeWithRetry(ctx, "repository.list_by_user", "", func() error {
		q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order(historyOrder)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListAll returns every record with owner details, newest first.
func (r *ClassificationRepository) ListAll(ctx context.Context, limit int) ([]OwnedClassification, error) {
	records := []OwnedClassification{}
	err := r.executeWithRetry(ctx, "repository.list_all", "", func() error {
		q := r.db.WithContext(ctx).
			Table("classification_results").
			Select("classification_results.*, users.name AS owner_name, users.email AS owner_email").
			Joins("JOIN users ON users.id = classification_results.user_id").
			Order(historyOrder)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Scan(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AggregateStats computes totals across all persisted records.
func (r *ClassificationRepository) AggregateStats(ctx context.Context) (*ClassificationStats, error) {
	var stats ClassificationStats
	err := r.executeWithRetry(ctx, "repository.aggregate_stats", "", func() error {
		return r.db.WithContext(ctx).
			Model(&ClassificationResult{}).
			Select(`COUNT(*) AS total_count,
				COALESCE(SUM(CASE WHEN logo_status = ? THEN 1 ELSE 0 END), 0) AS real_count,
				COALESCE(SUM(CASE WHEN logo_status = ? THEN 1 ELSE 0 END), 0) AS fake_count,
				COALESCE(AVG(confidence_score), 0) AS average_confidence`, "REAL", "FAKE").
			Scan(&stats).Error
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *ClassificationRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	err := retry.Do(ctx, r.logger, r.retry, operation, requestID, fn)
	if err != nil {
		r.logger.Error("repository operation failed", zap.String("operation", operation), zap.Error(err))
	}
	return err
}

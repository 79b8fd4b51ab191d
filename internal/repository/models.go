package repository

import "time"

// User is an account owned by the auth layer and referenced by classification records.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"column:name;size:150;not null" json:"name"`
	Email        string    `gorm:"column:email;size:150;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// ClassificationResult is one completed, append-only classification.
type ClassificationResult struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"column:user_id;not null" json:"user_id"`
	OriginalImage   string    `gorm:"column:original_image;size:255;not null" json:"original_image"`
	ProcessedImage  *string   `gorm:"column:processed_image;size:255" json:"processed_image,omitempty"`
	ConfidenceScore float64   `gorm:"column:confidence_score;not null" json:"confidence_score"`
	LogoStatus      string    `gorm:"column:logo_status;size:20;not null" json:"logo_status"`
	Timestamp       time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
}

// TableName overrides the default table name.
func (ClassificationResult) TableName() string {
	return "classification_results"
}

// OwnedClassification joins a record with its owner for the admin view.
type OwnedClassification struct {
	ClassificationResult
	OwnerName  string `gorm:"column:owner_name" json:"owner_name"`
	OwnerEmail string `gorm:"column:owner_email" json:"owner_email"`
}

// ClassificationStats summarises every persisted classification.
type ClassificationStats struct {
	TotalCount        int64   `gorm:"column:total_count"`
	RealCount         int64   `gorm:"column:real_count"`
	FakeCount         int64   `gorm:"column:fake_count"`
	AverageConfidence float64 `gorm:"column:average_confidence"`
}

package repository

import (
	"context"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/rekognizer/internal/facenet"
	"github.com/example/rekognizer/internal/logging"
	"github.com/example/rekognizer/internal/retry"
)

// Enrollment is one stored reference embedding of a user.
type Enrollment struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	UserID    int64           `gorm:"column:user_id;not null"`
	Embedding pq.Float64Array `gorm:"column:embedding;type:double precision[];not null"`
	CreatedAt time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null"`
}

// TableName overrides the default table name.
func (Enrollment) TableName() string {
	return "embeddings"
}

// NewEnrollment builds an unsaved enrollment for userID.
func NewEnrollment(userID int64, embedding facenet.Embedding) Enrollment {
	return Enrollment{UserID: userID, Embedding: pq.Float64Array(embedding)}
}

// Vector returns the stored embedding.
func (e Enrollment) Vector() facenet.Embedding {
	return facenet.Embedding(e.Embedding)
}

// Summary aggregates the enrollment table.
type Summary struct {
	TotalEnrollments int64
	DistinctUsers    int64
}

// EnrollmentRepository provides persistence APIs for enrollments.
type EnrollmentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewEnrollmentRepository creates a new repository instance.
func NewEnrollmentRepository(db *gorm.DB, logger *zap.Logger) *EnrollmentRepository {
	return &EnrollmentRepository{
		db:     db,
		logger: logger.Named("enrollment_repository"),
		policy: retry.DefaultPolicy,
	}
}

// AutoMigrate ensures the schema is available.
func (r *EnrollmentRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&Enrollment{})
	})
}

// AppendAll persists enrollments in a single transaction and fills in their IDs and
// timestamps. Either every row is stored or none is.
func (r *EnrollmentRepository) AppendAll(ctx context.Context, enrollments []Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	return r.executeWithRetry(ctx, "repository.append_all", func() error {
		// a rolled back attempt may have assigned IDs
		for i := range enrollments {
			enrollments[i].ID = 0
		}
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&enrollments).Error
		})
	})
}

// ScanAll loads every enrollment in insertion order. There is no pagination.
func (r *EnrollmentRepository) ScanAll(ctx context.Context) ([]Enrollment, error) {
	var enrollments []Enrollment
	err := r.executeWithRetry(ctx, "repository.scan_all", func() error {
		enrollments = nil
		return r.db.WithContext(ctx).Order("id ASC").Find(&enrollments).Error
	})
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

// Summarize counts enrollments and enrolled users.
func (r *EnrollmentRepository) Summarize(ctx context.Context) (*Summary, error) {
	var summary Summary
	err := r.executeWithRetry(ctx, "repository.summarize", func() error {
		return r.db.WithContext(ctx).
			Model(&Enrollment{}).
			Select("COUNT(*) AS total_enrollments, COUNT(DISTINCT user_id) AS distinct_users").
			Scan(&summary).Error
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *EnrollmentRepository) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(ctx, r.logger, r.policy, operation, logging.RequestID(ctx), fn)
}

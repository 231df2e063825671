package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/logging"
	"github.com/example/rekognizer/internal/repository"
)

// EnrollmentUseCase stores reference faces for users.
type EnrollmentUseCase struct {
	pipeline *FacePipeline
	embedder Embedder
	repo     EnrollmentRepository
	logger   *zap.Logger
}

// NewEnrollmentUseCase constructs a new use case instance.
func NewEnrollmentUseCase(pipeline *FacePipeline, embedder Embedder, repo EnrollmentRepository, logger *zap.Logger) *EnrollmentUseCase {
	return &EnrollmentUseCase{
		pipeline: pipeline,
		embedder: embedder,
		repo:     repo,
		logger:   logger.Named("enrollment_usecase"),
	}
}

// Enroll stores one enrollment per image, processing the images in order. The first
// image without exactly one face aborts the call before anything is stored; the
// enrollments of a successful call are persisted together.
func (uc *EnrollmentUseCase) Enroll(ctx context.Context, userID int64, imageURLs []string) ([]repository.Enrollment, error) {
	ctx, requestID := logging.EnsureRequestID(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.enroll", requestID).With(zap.Int64("user_id", userID))

	enrolled := make([]repository.Enrollment, 0, len(imageURLs))
	for _, url := range imageURLs {
		tensor, err := uc.pipeline.Extract(ctx, url)
		if err != nil {
			if isDomainError(err) {
				opLogger.Info("enrollment rejected", zap.String("image_url", url), zap.Error(err))
				return nil, err
			}
			wrapped := logging.NewOperationError("usecase.enroll.extract", requestID, err)
			opLogger.Error("face extraction failed", zap.Error(wrapped), zap.String("image_url", url))
			return nil, wrapped
		}

		embedding, err := embedOne(ctx, uc.embedder, tensor)
		if err != nil {
			wrapped := logging.NewOperationError("usecase.enroll.embed", requestID, err)
			opLogger.Error("embedding failed", zap.Error(wrapped), zap.String("image_url", url))
			return nil, wrapped
		}

		enrolled = append(enrolled, repository.NewEnrollment(userID, embedding))
	}

	if err := uc.repo.AppendAll(ctx, enrolled); err != nil {
		wrapped := logging.NewOperationError("usecase.enroll.append", requestID, err)
		opLogger.Error("failed to persist enrollments", logging.ErrorFields(wrapped)...)
		return nil, wrapped
	}

	opLogger.Info("user enrolled", zap.Int("enrollments", len(enrolled)))
	return enrolled, nil
}

func isDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

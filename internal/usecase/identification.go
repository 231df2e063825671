package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/facenet"
	"github.com/example/rekognizer/internal/grpcclient"
	"github.com/example/rekognizer/internal/logging"
)

// EventIdentified is dispatched after a successful identification.
const EventIdentified = "identified"

// IdentifiedEvent is the payload of EventIdentified.
type IdentifiedEvent struct {
	UserID       int64  `json:"user_id"`
	EnrollmentID uint   `json:"enrollment_id"`
	ImageURL     string `json:"image_url"`
}

// IdentificationUseCase finds the enrolled user shown in an image.
type IdentificationUseCase struct {
	pipeline *FacePipeline
	embedder Embedder
	matcher  facenet.Matcher
	repo     EnrollmentRepository
	users    UserDirectory
	events   EventDispatcher
	logger   *zap.Logger
}

// NewIdentificationUseCase constructs a new use case instance.
func NewIdentificationUseCase(
	pipeline *FacePipeline,
	embedder Embedder,
	matcher facenet.Matcher,
	repo EnrollmentRepository,
	users UserDirectory,
	events EventDispatcher,
	logger *zap.Logger,
) *IdentificationUseCase {
	return &IdentificationUseCase{
		pipeline: pipeline,
		embedder: embedder,
		matcher:  matcher,
		repo:     repo,
		users:    users,
		events:   events,
		logger:   logger.Named("identification_usecase"),
	}
}

// Identify returns the user whose enrollment is the first, in storage order, to match
// the single face of the image.
func (uc *IdentificationUseCase) Identify(ctx context.Context, imageURL string) (*grpcclient.User, error) {
	ctx, requestID := logging.EnsureRequestID(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.identify", requestID)

	tensor, err := uc.pipeline.Extract(ctx, imageURL)
	if err != nil {
		return nil, uc.fail(opLogger, "usecase.identify.extract", requestID, err)
	}
	query, err := embedOne(ctx, uc.embedder, tensor)
	if err != nil {
		return nil, uc.fail(opLogger, "usecase.identify.embed", requestID, err)
	}

	enrollments, err := uc.repo.ScanAll(ctx)
	if err != nil {
		return nil, uc.fail(opLogger, "usecase.identify.scan", requestID, err)
	}
	if len(enrollments) == 0 {
		opLogger.Info("no enrollments to compare against")
		return nil, fmt.Errorf("%w: %s", ErrUnknownPerson, imageURL)
	}

	batch := make([]facenet.Embedding, 0, len(enrollments)+1)
	batch = append(batch, query)
	for _, e := range enrollments {
		batch = append(batch, e.Vector())
	}
	same, err := uc.matcher.Similarities(batch)
	if err != nil {
		return nil, uc.fail(opLogger, "usecase.identify.compare", requestID, err)
	}

	match := -1
	for i := 1; i < len(same); i++ {
		if same[i] {
			match = i - 1
			break
		}
	}
	if match < 0 {
		opLogger.Info("face did not match any enrollment", zap.Int("enrollments", len(enrollments)))
		return nil, fmt.Errorf("%w: %s", ErrUnknownPerson, imageURL)
	}
	enrollment := enrollments[match]

	user, err := uc.users.GetUser(ctx, enrollment.UserID)
	if err != nil {
		return nil, uc.fail(opLogger, "usecase.identify.get_user", requestID, err)
	}
	if !user.IsActivated {
		opLogger.Info("matched user is disabled", zap.Int64("user_id", user.ID))
		return nil, fmt.Errorf("%w: %d", ErrUserDisabled, user.ID)
	}

	uc.events.Dispatch(ctx, EventIdentified, IdentifiedEvent{
		UserID:       user.ID,
		EnrollmentID: enrollment.ID,
		ImageURL:     imageURL,
	})
	opLogger.Info("user identified", zap.Int64("user_id", user.ID), zap.Uint("enrollment_id", enrollment.ID))
	return user, nil
}

func (uc *IdentificationUseCase) fail(opLogger *zap.Logger, operation, requestID string, err error) error {
	if isDomainError(err) {
		opLogger.Info("identification rejected", zap.Error(err))
		return err
	}
	wrapped := logging.NewOperationError(operation, requestID, err)
	opLogger.Error("identification failed", logging.ErrorFields(wrapped)...)
	return wrapped
}

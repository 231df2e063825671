package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/facenet"
	"github.com/example/rekognizer/internal/imageprocessor"
	"github.com/example/rekognizer/internal/logging"
)

// VerificationResult is the outcome of one image of a verification request.
type VerificationResult struct {
	ImageURL string `json:"image_url"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

// VerificationUseCase decides whether a set of images shows the same person.
type VerificationUseCase struct {
	pipeline *FacePipeline
	embedder Embedder
	matcher  facenet.Matcher
	logger   *zap.Logger
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(pipeline *FacePipeline, embedder Embedder, matcher facenet.Matcher, logger *zap.Logger) *VerificationUseCase {
	return &VerificationUseCase{
		pipeline: pipeline,
		embedder: embedder,
		matcher:  matcher,
		logger:   logger.Named("verification_usecase"),
	}
}

// Verify returns one result per image URL, in input order. Images without exactly one
// face are rejected individually; the faces of the remaining images are embedded in a
// single call and compared with the first of them.
func (uc *VerificationUseCase) Verify(ctx context.Context, imageURLs []string) ([]VerificationResult, error) {
	ctx, requestID := logging.EnsureRequestID(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.verify", requestID)

	results := make([]VerificationResult, len(imageURLs))
	tensors := make([]*imageprocessor.Tensor, 0, len(imageURLs))
	positions := make([]int, 0, len(imageURLs))

	for i, url := range imageURLs {
		results[i].ImageURL = url

		tensor, err := uc.pipeline.Extract(ctx, url)
		if err != nil {
			code, ok := rejectionCode(err)
			if !ok {
				wrapped := logging.NewOperationError("usecase.verify.extract", requestID, err)
				opLogger.Error("face extraction failed", zap.Error(wrapped), zap.String("image_url", url))
				return nil, wrapped
			}
			opLogger.Info("image rejected", zap.String("image_url", url), zap.String("reason", code), zap.Error(err))
			results[i].Error = code
			continue
		}
		tensors = append(tensors, tensor)
		positions = append(positions, i)
	}

	if len(tensors) == 0 {
		return results, nil
	}

	embeddings, err := uc.embedder.Embed(ctx, tensors)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.verify.embed", requestID, err)
		opLogger.Error("embedding failed", logging.ErrorFields(wrapped)...)
		return nil, wrapped
	}
	same, err := uc.matcher.Similarities(embeddings)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.verify.compare", requestID, err)
		opLogger.Error("comparison failed", logging.ErrorFields(wrapped)...)
		return nil, wrapped
	}

	for j, pos := range positions {
		results[pos].Valid = same[j]
		if !same[j] {
			results[pos].Error = CodeNotSamePerson
		}
	}

	opLogger.Info("verification completed", zap.Int("images", len(imageURLs)), zap.Int("faces", len(tensors)))
	return results, nil
}

// rejectionCode maps per-image failures to an outcome code. An image that cannot be
// fetched or decoded has no face to offer and is reported as NO_FACE.
func rejectionCode(err error) (string, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code, true
	}
	var loadErr *imageprocessor.LoadError
	if errors.As(err, &loadErr) {
		return ErrNoFace.Code, true
	}
	return "", false
}

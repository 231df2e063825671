package usecase

import (
	"context"
	"fmt"

	"github.com/example/rekognizer/internal/facenet"
	"github.com/example/rekognizer/internal/grpcclient"
	"github.com/example/rekognizer/internal/imageprocessor"
	"github.com/example/rekognizer/internal/repository"
)

// ImageLoader fetches and decodes an image.
type ImageLoader interface {
	Load(ctx context.Context, url string) (*imageprocessor.Raster, error)
}

// FaceLocator returns the bounding boxes of the faces in a raster.
type FaceLocator interface {
	Locate(ctx context.Context, raster *imageprocessor.Raster) ([]imageprocessor.Box, error)
}

// Embedder computes one embedding per tensor in a single round trip.
type Embedder interface {
	Embed(ctx context.Context, tensors []*imageprocessor.Tensor) ([]facenet.Embedding, error)
}

// EnrollmentRepository defines the persistence operations needed by the use cases.
type EnrollmentRepository interface {
	AppendAll(ctx context.Context, enrollments []repository.Enrollment) error
	ScanAll(ctx context.Context) ([]repository.Enrollment, error)
	Summarize(ctx context.Context) (*repository.Summary, error)
}

// UserDirectory resolves the account status of a user.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*grpcclient.User, error)
}

// FacePipeline turns an image URL into the normalized crop of its single face.
type FacePipeline struct {
	loader  ImageLoader
	locator FaceLocator
	maxEdge int
}

// NewFacePipeline builds a pipeline that caps rasters to maxEdge before detection.
func NewFacePipeline(loader ImageLoader, locator FaceLocator, maxEdge int) *FacePipeline {
	return &FacePipeline{loader: loader, locator: locator, maxEdge: maxEdge}
}

// Extract loads url, requires exactly one face and returns its tensor.
// Face count violations are returned as ErrNoFace or ErrTooManyFaces.
func (p *FacePipeline) Extract(ctx context.Context, url string) (*imageprocessor.Tensor, error) {
	raster, err := p.loader.Load(ctx, url)
	if err != nil {
		return nil, err
	}
	raster = imageprocessor.ResizeToFit(raster, p.maxEdge)

	boxes, err := p.locator.Locate(ctx, raster)
	if err != nil {
		return nil, err
	}
	switch {
	case len(boxes) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNoFace, url)
	case len(boxes) > 1:
		return nil, fmt.Errorf("%w: %s", ErrTooManyFaces, url)
	}

	tensor, err := imageprocessor.Prepare(raster, boxes[0])
	if err != nil {
		// the detector reported a box with no usable pixels
		return nil, fmt.Errorf("%w: %s: %v", ErrNoFace, url, err)
	}
	return tensor, nil
}

// embedOne computes the embedding of a single tensor.
func embedOne(ctx context.Context, embedder Embedder, tensor *imageprocessor.Tensor) (facenet.Embedding, error) {
	embeddings, err := embedder.Embed(ctx, []*imageprocessor.Tensor{tensor})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}
	return embeddings[0], nil
}

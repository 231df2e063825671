package usecase

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/example/rekognizer/internal/facenet"
	"github.com/example/rekognizer/internal/grpcclient"
	"github.com/example/rekognizer/internal/imageprocessor"
	"github.com/example/rekognizer/internal/repository"
)

// fakeImages serves as both loader and locator: every URL maps to a face count.
type fakeImages struct {
	faces       map[string]int
	rasters     map[*imageprocessor.Raster]int
	locateErr   error
	locateCalls int
}

func newFakeImages(faces map[string]int) *fakeImages {
	return &fakeImages{faces: faces, rasters: map[*imageprocessor.Raster]int{}}
}

func (f *fakeImages) Load(ctx context.Context, url string) (*imageprocessor.Raster, error) {
	n, ok := f.faces[url]
	if !ok {
		return nil, &imageprocessor.LoadError{URL: url, Err: errors.New("unexpected status 404")}
	}
	r := imageprocessor.NewRaster(image.NewRGBA(image.Rect(0, 0, 100, 100)))
	f.rasters[r] = n
	return r, nil
}

func (f *fakeImages) Locate(ctx context.Context, r *imageprocessor.Raster) ([]imageprocessor.Box, error) {
	f.locateCalls++
	if f.locateErr != nil {
		return nil, f.locateErr
	}
	boxes := make([]imageprocessor.Box, f.rasters[r])
	for i := range boxes {
		boxes[i] = imageprocessor.Box{X: 10, Y: 10, Width: 50, Height: 50}
	}
	return boxes, nil
}

// stubEmbedder returns queued outputs, one slice per call.
type stubEmbedder struct {
	outputs    [][]facenet.Embedding
	err        error
	batchSizes []int
}

func (s *stubEmbedder) Embed(ctx context.Context, tensors []*imageprocessor.Tensor) ([]facenet.Embedding, error) {
	s.batchSizes = append(s.batchSizes, len(tensors))
	if s.err != nil {
		return nil, s.err
	}
	if len(s.outputs) == 0 {
		return nil, errors.New("no queued embeddings")
	}
	out := s.outputs[0]
	s.outputs = s.outputs[1:]
	return out, nil
}

type stubRepository struct {
	enrollments []repository.Enrollment
	appendErr   error
	appendCalls int
	scanCalls   int
	summary     *repository.Summary
}

func (s *stubRepository) AppendAll(ctx context.Context, enrollments []repository.Enrollment) error {
	s.appendCalls++
	if s.appendErr != nil {
		return s.appendErr
	}
	for i := range enrollments {
		enrollments[i].ID = uint(len(s.enrollments) + 1)
		s.enrollments = append(s.enrollments, enrollments[i])
	}
	return nil
}

func (s *stubRepository) ScanAll(ctx context.Context) ([]repository.Enrollment, error) {
	s.scanCalls++
	return append([]repository.Enrollment(nil), s.enrollments...), nil
}

func (s *stubRepository) Summarize(ctx context.Context) (*repository.Summary, error) {
	if s.summary == nil {
		return nil, errors.New("no summary")
	}
	return s.summary, nil
}

type stubUsers struct {
	users map[int64]*grpcclient.User
	calls []int64
}

func (s *stubUsers) GetUser(ctx context.Context, id int64) (*grpcclient.User, error) {
	s.calls = append(s.calls, id)
	user, ok := s.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

type stubEvents struct {
	mu     sync.Mutex
	names  []string
	events []interface{}
}

func (s *stubEvents) Dispatch(ctx context.Context, name string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.events = append(s.events, payload)
}

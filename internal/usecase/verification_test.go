package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/facenet"
	"github.com/example/rekognizer/internal/logging"
)

func newVerification(images *fakeImages, embedder *stubEmbedder) *VerificationUseCase {
	return NewVerificationUseCase(NewFacePipeline(images, images, 600), embedder, facenet.NewMatcher(facenet.DefaultThreshold), zap.NewNop())
}

func TestVerifySamePerson(t *testing.T) {
	images := newFakeImages(map[string]int{"img-0-faces": 0, "img-1-face-A": 1, "img-1-face-A-again": 1})
	embedder := &stubEmbedder{outputs: [][]facenet.Embedding{{{0, 0}, {0.1, 0}}}}

	got, err := newVerification(images, embedder).Verify(context.Background(), []string{"img-0-faces", "img-1-face-A", "img-1-face-A-again"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []VerificationResult{
		{ImageURL: "img-0-faces", Valid: false, Error: "NO_FACE"},
		{ImageURL: "img-1-face-A", Valid: true},
		{ImageURL: "img-1-face-A-again", Valid: true},
	}
	assertResults(t, got, want)
	if len(embedder.batchSizes) != 1 || embedder.batchSizes[0] != 2 {
		t.Fatalf("expected one embedding call with 2 faces, got %v", embedder.batchSizes)
	}
}

func TestVerifyDifferentPerson(t *testing.T) {
	images := newFakeImages(map[string]int{"img-0-faces": 0, "img-1-face-A": 1, "img-1-face-B": 1})
	embedder := &stubEmbedder{outputs: [][]facenet.Embedding{{{0, 0}, {1, 1}}}}

	got, err := newVerification(images, embedder).Verify(context.Background(), []string{"img-0-faces", "img-1-face-A", "img-1-face-B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertResults(t, got, []VerificationResult{
		{ImageURL: "img-0-faces", Error: "NO_FACE"},
		{ImageURL: "img-1-face-A", Valid: true},
		{ImageURL: "img-1-face-B", Error: CodeNotSamePerson},
	})
}

func TestVerifyRejectionsSkipEmbedding(t *testing.T) {
	images := newFakeImages(map[string]int{"crowd": 3, "empty": 0})
	embedder := &stubEmbedder{}

	got, err := newVerification(images, embedder).Verify(context.Background(), []string{"crowd", "missing", "empty"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertResults(t, got, []VerificationResult{
		{ImageURL: "crowd", Error: "TOO_MANY_FACES"},
		{ImageURL: "missing", Error: "NO_FACE"},
		{ImageURL: "empty", Error: "NO_FACE"},
	})
	if len(embedder.batchSizes) != 0 {
		t.Fatalf("expected no embedding call, got %v", embedder.batchSizes)
	}
}

func TestVerifySingleFaceIsValid(t *testing.T) {
	images := newFakeImages(map[string]int{"solo": 1})
	embedder := &stubEmbedder{outputs: [][]facenet.Embedding{{{0.4, 0.2}}}}

	got, err := newVerification(images, embedder).Verify(context.Background(), []string{"solo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertResults(t, got, []VerificationResult{{ImageURL: "solo", Valid: true}})
}

func TestVerifyEmbeddingFailureAbortsRequest(t *testing.T) {
	images := newFakeImages(map[string]int{"a": 1, "b": 1})
	embedder := &stubEmbedder{err: errors.New("model server down")}

	_, err := newVerification(images, embedder).Verify(context.Background(), []string{"a", "b"})
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %v", err)
	}
	if opErr.Operation != "usecase.verify.embed" {
		t.Fatalf("unexpected operation %s", opErr.Operation)
	}
}

func TestVerifyDetectorFailureAbortsRequest(t *testing.T) {
	images := newFakeImages(map[string]int{"a": 1})
	images.locateErr = errors.New("detector unavailable")

	_, err := newVerification(images, &stubEmbedder{}).Verify(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected detector failure to surface")
	}
}

func assertResults(t *testing.T, got, want []VerificationResult) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}

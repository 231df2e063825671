package imageprocessor

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func gradientRaster(w, h int) *Raster {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: uint8((x + y) * 3), A: 255})
		}
	}
	return NewRaster(img)
}

func TestPrepareIsDeterministic(t *testing.T) {
	r := gradientRaster(320, 240)
	box := Box{X: 40, Y: 30, Width: 120, Height: 150}

	first, err := Prepare(r, box)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Prepare(r, box)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first.Data) != FaceSize*FaceSize*3 {
		t.Fatalf("expected %d values, got %d", FaceSize*FaceSize*3, len(first.Data))
	}
	for i := range first.Data {
		if math.Float32bits(first.Data[i]) != math.Float32bits(second.Data[i]) {
			t.Fatalf("value %d differs: %v vs %v", i, first.Data[i], second.Data[i])
		}
	}
}

func TestPrepareNormalizesToZeroMeanUnitVariance(t *testing.T) {
	tensor, err := Prepare(gradientRaster(200, 200), Box{X: 10, Y: 10, Width: 180, Height: 180})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum, sq float64
	for _, v := range tensor.Data {
		sum += float64(v)
	}
	mean := sum / float64(len(tensor.Data))
	for _, v := range tensor.Data {
		d := float64(v) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(tensor.Data)))

	if math.Abs(mean) > 1e-4 {
		t.Errorf("expected zero mean, got %v", mean)
	}
	if math.Abs(std-1) > 1e-3 {
		t.Errorf("expected unit std, got %v", std)
	}
}

func TestPrepareFlatImageUsesStdFloor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for i := range img.Pix {
		img.Pix[i] = 128
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	tensor, err := Prepare(NewRaster(img), Box{Width: 50, Height: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range tensor.Data {
		if v != 0 || math.IsNaN(float64(v)) {
			t.Fatalf("expected 0 at %d, got %v", i, v)
		}
	}
}

func TestPrepareRejectsBadBoxes(t *testing.T) {
	r := gradientRaster(100, 100)

	cases := []struct {
		name string
		box  Box
		want error
	}{
		{"zero width", Box{X: 10, Y: 10, Width: 0, Height: 20}, ErrDegenerateBox},
		{"negative height", Box{X: 10, Y: 10, Width: 20, Height: -4}, ErrDegenerateBox},
		{"outside", Box{X: 150, Y: 150, Width: 20, Height: 20}, ErrBoxOutOfBounds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Prepare(r, tc.box); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPrepareClipsPartiallyOutsideBox(t *testing.T) {
	tensor, err := Prepare(gradientRaster(100, 100), Box{X: -10, Y: 80, Width: 40, Height: 40})
	if err != nil {
		t.Fatalf("expected clipped box to succeed, got %v", err)
	}
	if tensor.Size != FaceSize {
		t.Fatalf("expected size %d, got %d", FaceSize, tensor.Size)
	}
}

func TestPrepareBoxPastEdgeMatchesClippedBox(t *testing.T) {
	r := gradientRaster(100, 100)

	overhanging, err := Prepare(r, Box{X: 70, Y: 0, Width: 50, Height: 30})
	if err != nil {
		t.Fatalf("expected box past the right edge to be clipped, got %v", err)
	}
	clipped, err := Prepare(r, Box{X: 70, Y: 0, Width: 30, Height: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range clipped.Data {
		if overhanging.Data[i] != clipped.Data[i] {
			t.Fatalf("value %d differs: %v vs %v", i, overhanging.Data[i], clipped.Data[i])
		}
	}
}

func TestTensorNestedLayout(t *testing.T) {
	tensor, err := Prepare(gradientRaster(64, 64), Box{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nested := tensor.Nested()
	if len(nested) != FaceSize || len(nested[0]) != FaceSize || len(nested[0][0]) != 3 {
		t.Fatalf("unexpected shape %dx%dx%d", len(nested), len(nested[0]), len(nested[0][0]))
	}
	if nested[5][7][2] != tensor.At(5, 7, 2) {
		t.Fatalf("nested value mismatch")
	}
}

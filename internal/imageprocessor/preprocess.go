package imageprocessor

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// FaceSize is the edge length of the square input expected by the embedding model.
const FaceSize = 160

var (
	ErrDegenerateBox  = errors.New("degenerate bounding box")
	ErrBoxOutOfBounds = errors.New("bounding box outside raster")
)

// Tensor is a FaceSize x FaceSize x 3 normalized face crop stored row-major, channels last.
type Tensor struct {
	Size int
	Data []float32
}

// At returns the value at row y, column x, channel c.
func (t *Tensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Size+x)*3+c]
}

// Nested returns the tensor as [rows][cols][channels], the layout the model server expects.
func (t *Tensor) Nested() [][][]float32 {
	rows := make([][][]float32, t.Size)
	for y := range rows {
		cols := make([][]float32, t.Size)
		for x := range cols {
			off := (y*t.Size + x) * 3
			cols[x] = t.Data[off : off+3 : off+3]
		}
		rows[y] = cols
	}
	return rows
}

// Prepare crops the box out of the raster, scales it to FaceSize and prewhitens it.
// Boxes partially outside the raster are clipped; boxes with no overlap fail.
func Prepare(r *Raster, box Box) (*Tensor, error) {
	if box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDegenerateBox, box.Width, box.Height)
	}
	rect := box.Rect().Intersect(r.img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: %v not in %v", ErrBoxOutOfBounds, box.Rect(), r.img.Bounds())
	}

	face := image.NewRGBA(image.Rect(0, 0, FaceSize, FaceSize))
	scaleArea(face, r.img, rect)
	return prewhiten(face), nil
}

// prewhiten maps pixels to zero mean and unit variance over all pixels and channels.
// The standard deviation is floored at 1/sqrt(n) so flat crops do not blow up.
func prewhiten(img *image.RGBA) *Tensor {
	b := img.Bounds()
	size := b.Dx()
	values := make([]float64, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := img.PixOffset(x, y)
			values = append(values, float64(img.Pix[off]), float64(img.Pix[off+1]), float64(img.Pix[off+2]))
		}
	}

	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / n)
	scale := 1 / math.Max(std, 1/math.Sqrt(n))

	data := make([]float32, len(values))
	for i, v := range values {
		data[i] = float32((v - mean) * scale)
	}
	return &Tensor{Size: size, Data: data}
}

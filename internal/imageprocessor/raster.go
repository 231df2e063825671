package imageprocessor

import (
	"image"

	"golang.org/x/image/draw"
)

// Raster is a decoded RGB image. The alpha channel of the backing buffer is ignored.
type Raster struct {
	img *image.RGBA
}

// NewRaster copies src into a zero-origin RGBA buffer.
func NewRaster(src image.Image) *Raster {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Raster{img: dst}
}

func (r *Raster) Width() int  { return r.img.Bounds().Dx() }
func (r *Raster) Height() int { return r.img.Bounds().Dy() }

// Image exposes the raster for encoding. Callers must not modify it.
func (r *Raster) Image() image.Image { return r.img }

// Box is a face bounding box in pixel coordinates, origin top-left.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// areaKernel is a box filter. Downscaling widens its support to the scale factor,
// so every output pixel is the mean of the source area it covers.
var areaKernel = &draw.Kernel{
	Support: 0.5,
	At:      func(float64) float64 { return 1 },
}

// scaleArea draws sr of src into dst using area averaging when shrinking along both
// axes and bilinear interpolation otherwise. A box filter enlarges like nearest
// neighbour, so it is only used where it averages.
func scaleArea(dst *image.RGBA, src *image.RGBA, sr image.Rectangle) {
	var scaler draw.Scaler = areaKernel
	if dst.Bounds().Dx() > sr.Dx() || dst.Bounds().Dy() > sr.Dy() {
		scaler = draw.BiLinear
	}
	scaler.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
}

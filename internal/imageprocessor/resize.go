package imageprocessor

import "image"

// Resize scales the raster keeping its aspect ratio. A zero width is derived from
// height and vice versa; when both are zero the raster is returned untouched.
// Width wins when both are set.
func Resize(r *Raster, width, height int) *Raster {
	if width <= 0 && height <= 0 {
		return r
	}

	w, h := r.Width(), r.Height()
	var dw, dh int
	if width <= 0 {
		ratio := float64(height) / float64(h)
		dw, dh = int(float64(w)*ratio), height
	} else {
		ratio := float64(width) / float64(w)
		dw, dh = width, int(float64(h)*ratio)
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	scaleArea(dst, r.img, r.img.Bounds())
	return &Raster{img: dst}
}

// ResizeToFit bounds the long edge of the raster to maxEdge. Smaller rasters are returned as-is.
func ResizeToFit(r *Raster, maxEdge int) *Raster {
	w, h := r.Width(), r.Height()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return r
	}
	if w >= h {
		return Resize(r, maxEdge, 0)
	}
	return Resize(r, 0, maxEdge)
}

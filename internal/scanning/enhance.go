package scanning

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// MaxPageSide bounds the longest side of a page sent to OCR
const MaxPageSide = 2000

// Enhance flattens transparency onto white and shrinks oversized pages.
// Images within bounds keep their size.
func Enhance(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
	return imaging.Fit(flat, MaxPageSide, MaxPageSide, imaging.Lanczos)
}

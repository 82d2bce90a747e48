package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// pdfToImages renders every page of a PDF
func pdfToImages(pdfData []byte) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

// decodeImage decodes JPEG, PNG, GIF and HEIC/HEIF images
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	// Go's standard image package doesn't support HEIC (common on iPhones)
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files carry an ftyp box at offset 4 with a HEIC-related brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// preparePages turns an upload into enhanced PNG pages ready for OCR.
// PDFs yield one page per PDF page; images yield a single page.
func preparePages(data []byte, contentType string) ([][]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	var images []image.Image
	if mimeType == "application/pdf" {
		pages, err := pdfToImages(data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to images: %w", err)
		}
		images = pages
	} else {
		img, err := decodeImage(data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("converting image to PNG: %w", err)
		}
		images = []image.Image{img}
	}

	out := make([][]byte, 0, len(images))
	for _, img := range images {
		page, err := encodePNG(Enhance(img))
		if err != nil {
			return nil, err
		}
		out = append(out, page)
	}
	return out, nil
}

package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

var (
	// ErrEmptyImage is returned when an upload carries no bytes
	ErrEmptyImage = errors.New("image is empty")
	// ErrUnsupportedFormat is returned for uploads that are not an image or a PDF
	ErrUnsupportedFormat = errors.New("unsupported image format. Supported formats: JPEG, PNG, WEBP, GIF, BMP, TIFF, HEIC, HEIF, PDF")
)

// pdfToImage renders the first page of a PDF
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Most invoices are a single page
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes any supported raster format, applying EXIF orientation
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("decoding image: %w", ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files carry an ftyp box at offset 4 with a heic/heif brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heix" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// normalizeMIMEType lowercases a content type and strips its parameters
func normalizeMIMEType(contentType string) string {
	mimeType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// DetectMIMEType sniffs the real encoding of the data. The declared type is
// only trusted for HEIC/HEIF variants the sniffer does not know.
func DetectMIMEType(data []byte, declared string) string {
	if isHEICFormat(data) {
		return "image/heic"
	}
	sniffed := normalizeMIMEType(mimetype.Detect(data).String())
	if sniffed == "application/octet-stream" && isHEICMimeType(normalizeMIMEType(declared)) {
		return normalizeMIMEType(declared)
	}
	return sniffed
}

// fitsWithin reports whether the encoded image is no larger than maxDimension on either side.
// A header that cannot be read means the bytes are not the image they claim to be.
func fitsWithin(imageData []byte, maxDimension int) (bool, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return false, fmt.Errorf("reading image header: %w (%v)", ErrUnsupportedFormat, err)
	}
	if maxDimension <= 0 {
		return true, nil
	}
	return cfg.Width <= maxDimension && cfg.Height <= maxDimension, nil
}

// downscale shrinks img so that neither side exceeds maxDimension
func downscale(img image.Image, maxDimension int) image.Image {
	if maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxDimension && b.Dy() <= maxDimension {
		return img
	}
	return imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
}

func encode(img image.Image, format imaging.Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if format == imaging.PNG {
		err = png.Encode(&buf, img)
	} else {
		err = imaging.Encode(&buf, img, format, imaging.JPEGQuality(90))
	}
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), nil
}

// PrepareImage turns an upload into an Image whose MIMEType matches its bytes.
// JPEG, PNG and WEBP are sent as-is unless larger than maxDimension; PDFs,
// HEIC and the other raster formats are converted to PNG.
func PrepareImage(imageData []byte, contentType string, maxDimension int) (Image, error) {
	if len(imageData) == 0 {
		return Image{}, ErrEmptyImage
	}

	mimeType := DetectMIMEType(imageData, contentType)

	switch {
	case mimeType == "application/pdf":
		img, err := pdfToImage(imageData)
		if err != nil {
			return Image{}, fmt.Errorf("converting PDF to image: %w", err)
		}
		data, err := encode(downscale(img, maxDimension), imaging.PNG)
		if err != nil {
			return Image{}, err
		}
		return Image{Data: data, MIMEType: "image/png"}, nil

	case mimeType == "image/webp":
		return Image{Data: imageData, MIMEType: mimeType}, nil

	case mimeType == "image/jpeg" || mimeType == "image/png":
		fits, err := fitsWithin(imageData, maxDimension)
		if err != nil {
			return Image{}, err
		}
		if fits {
			return Image{Data: imageData, MIMEType: mimeType}, nil
		}
		img, err := decodeImage(imageData, mimeType)
		if err != nil {
			return Image{}, err
		}
		format := imaging.PNG
		if mimeType == "image/jpeg" {
			format = imaging.JPEG
		}
		data, err := encode(downscale(img, maxDimension), format)
		if err != nil {
			return Image{}, err
		}
		return Image{Data: data, MIMEType: mimeType}, nil

	case strings.HasPrefix(mimeType, "image/"):
		img, err := decodeImage(imageData, mimeType)
		if err != nil {
			return Image{}, fmt.Errorf("converting image to PNG: %w", err)
		}
		data, err := encode(downscale(img, maxDimension), imaging.PNG)
		if err != nil {
			return Image{}, err
		}
		return Image{Data: data, MIMEType: "image/png"}, nil
	}

	return Image{}, fmt.Errorf("%w (got %q)", ErrUnsupportedFormat, mimeType)
}

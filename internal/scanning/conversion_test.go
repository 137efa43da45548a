package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func pngBytes(width, height int) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, testImage(width, height))).To(Succeed())
	return buf.Bytes()
}

func jpegBytes(width, height int) []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, testImage(width, height), nil)).To(Succeed())
	return buf.Bytes()
}

func gifBytes(width, height int) []byte {
	var buf bytes.Buffer
	Expect(gif.Encode(&buf, testImage(width, height), nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("PrepareImage", func() {
	var (
		data         []byte
		contentType  string
		maxDimension int
		img          Image
		err          error
	)

	BeforeEach(func() {
		contentType = ""
		maxDimension = 100
	})

	JustBeforeEach(func() {
		img, err = PrepareImage(data, contentType, maxDimension)
	})

	When("the upload is a small PNG declared as JPEG", func() {
		BeforeEach(func() {
			data = pngBytes(20, 10)
			contentType = "image/jpeg"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should declare the real encoding", func() {
			Expect(img.MIMEType).To(Equal("image/png"))
		})

		It("should pass the bytes through untouched", func() {
			Expect(img.Data).To(Equal(data))
		})
	})

	When("the upload is a small JPEG", func() {
		BeforeEach(func() {
			data = jpegBytes(20, 10)
			contentType = "image/png"
		})

		It("should declare image/jpeg", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.MIMEType).To(Equal("image/jpeg"))
			Expect(img.Data).To(Equal(data))
		})
	})

	When("the upload is larger than the maximum dimension", func() {
		BeforeEach(func() {
			data = pngBytes(300, 150)
		})

		It("should keep the PNG encoding", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.MIMEType).To(Equal("image/png"))
		})

		It("should downscale to fit", func() {
			cfg, _, decodeErr := image.DecodeConfig(bytes.NewReader(img.Data))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(100))
			Expect(cfg.Height).To(Equal(50))
		})
	})

	When("resizing is disabled", func() {
		BeforeEach(func() {
			data = pngBytes(300, 150)
			maxDimension = 0
		})

		It("should pass the bytes through untouched", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Data).To(Equal(data))
		})
	})

	When("the upload is a GIF", func() {
		BeforeEach(func() {
			data = gifBytes(20, 10)
			contentType = "image/gif"
		})

		It("should convert it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.MIMEType).To(Equal("image/png"))
			_, format, decodeErr := image.Decode(bytes.NewReader(img.Data))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the upload is empty", func() {
		BeforeEach(func() {
			data = nil
		})

		It("returns ErrEmptyImage", func() {
			Expect(err).To(MatchError(ErrEmptyImage))
		})
	})

	When("a text file is declared as JPEG", func() {
		BeforeEach(func() {
			data = []byte("hello, this is just a text file")
			contentType = "image/jpeg"
		})

		It("returns ErrUnsupportedFormat", func() {
			Expect(err).To(MatchError(ErrUnsupportedFormat))
			Expect(img.Data).To(BeNil())
		})
	})

	When("a JPEG header is followed by garbage", func() {
		BeforeEach(func() {
			data = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("truncated")...)
			contentType = "image/jpeg"
		})

		It("returns ErrUnsupportedFormat", func() {
			Expect(err).To(MatchError(ErrUnsupportedFormat))
		})
	})

	When("a broken PNG is uploaded with resizing disabled", func() {
		BeforeEach(func() {
			data = pngBytes(20, 10)[:20]
			maxDimension = 0
		})

		It("still rejects it", func() {
			Expect(err).To(MatchError(ErrUnsupportedFormat))
		})
	})

	When("the upload is not an image", func() {
		BeforeEach(func() {
			data = []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00not really a zip")
			contentType = "application/zip"
		})

		It("returns ErrUnsupportedFormat", func() {
			Expect(err).To(MatchError(ErrUnsupportedFormat))
		})
	})
})

var _ = Describe("DetectMIMEType", func() {
	It("recognises HEIC by its ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(DetectMIMEType(data, "application/octet-stream")).To(Equal("image/heic"))
	})

	It("does not trust the declared type for text", func() {
		Expect(DetectMIMEType([]byte("hello, this is just a text file"), "image/jpeg")).To(Equal("text/plain"))
	})

	It("uses a declared HEIF type for unrecognised binary", func() {
		Expect(DetectMIMEType([]byte{0x00, 0x01, 0x02, 0x03}, "Image/HEIF; charset=binary")).To(Equal("image/heif"))
	})

	It("prefers the sniffed type over the declared one", func() {
		Expect(DetectMIMEType(pngBytes(2, 2), "image/jpeg")).To(Equal("image/png"))
	})
})

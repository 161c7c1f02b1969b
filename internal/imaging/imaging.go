// Package imaging normalises uploaded item photos before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxDimension is the maximum width or height of a stored photo.
const MaxDimension = 1024

// JPEGQuality is the compression quality for stored photos.
const JPEGQuality = 85

// MaxUploadSize bounds the raw upload read by Normalize.
const MaxUploadSize = 10 << 20

// Ext is the file extension of every normalised photo.
const Ext = "jpg"

// ErrUnsupportedFormat is returned for uploads that are not JPEG, PNG or WebP.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Photo is a normalised JPEG ready for the asset store.
type Photo struct {
	Data   []byte
	Width  int
	Height int
}

// Reader returns a reader over the encoded photo.
func (p *Photo) Reader() io.Reader {
	return bytes.NewReader(p.Data)
}

// Normalize sniffs the upload, shrinks it to fit MaxDimension and
// re-encodes it as JPEG. The client's declared content type is ignored.
func Normalize(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("image larger than %d bytes", MaxUploadSize)
	}

	detected := http.DetectContentType(data)
	if !accepted[detected] {
		return nil, fmt.Errorf("%w: %s (JPEG, PNG or WebP accepted)", ErrUnsupportedFormat, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Photo{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// fit scales img down with Catmull-Rom so its longer side is at most
// limit. Smaller images are returned unchanged.
func fit(img image.Image, limit int) image.Image {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	long := max(w, h)
	if long <= limit {
		return img
	}

	w = max(1, w*limit/long)
	h = max(1, h*limit/long)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

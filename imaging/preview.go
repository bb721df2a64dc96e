package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	maxPreviewDimension = 512 // Maximum width or height of the preview in pixels
	previewQuality      = 85
)

// Orientation extracts the EXIF orientation tag, 1 when absent
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// Orient returns img transformed so that it displays upright for the given
// EXIF orientation
func Orient(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	swap := orientation >= 5
	dw, dh := w, h
	if swap {
		dw, dh = h, w
	}

	out := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2: // mirror horizontal
				dx, dy = w-1-x, y
			case 3: // rotate 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirror vertical
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 clockwise
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 90 counter-clockwise
				dx, dy = y, w-1-x
			}
			out.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// Preview is what the upload panel displays for a selected image
type Preview struct {
	DataURL string
	Width   int
	Height  int
	Scaled  bool
}

// BuildPreview renders a data URL for the upload. Images larger than the
// preview bound are oriented and downscaled to a JPEG thumbnail; smaller ones
// are embedded as-is.
func BuildPreview(u *Upload) (*Preview, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= maxPreviewDimension && cfg.Height <= maxPreviewDimension {
		return &Preview{
			DataURL: dataURL(u.ContentType, u.Data),
			Width:   cfg.Width,
			Height:  cfg.Height,
		}, nil
	}

	thumb, w, h, err := Thumbnail(u.Data, maxPreviewDimension)
	if err != nil {
		return nil, err
	}
	return &Preview{
		DataURL: dataURL("image/jpeg", thumb),
		Width:   w,
		Height:  h,
		Scaled:  true,
	}, nil
}

// Thumbnail scales an image so that neither side exceeds maxDim, preserving
// aspect ratio and EXIF orientation, and encodes it as JPEG
func Thumbnail(data []byte, maxDim int) ([]byte, int, int, error) {
	orientation := Orientation(data)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	img = Orient(img, orientation)

	b := img.Bounds()
	w, h := scaledSize(b.Dx(), b.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode preview: %w", err)
	}

	log.Debugf("Preview thumbnail: %d bytes -> %d bytes (%dx%d -> %dx%d, orientation %d)",
		len(data), buf.Len(), b.Dx(), b.Dy(), w, h, orientation)
	return buf.Bytes(), w, h, nil
}

func scaledSize(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	scale := float64(maxDim) / float64(w)
	if s := float64(maxDim) / float64(h); s < scale {
		scale = s
	}
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	if nw > maxDim {
		nw = maxDim
	}
	if nh > maxDim {
		nh = maxDim
	}
	return nw, nh
}

func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

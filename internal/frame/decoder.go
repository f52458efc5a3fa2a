// Package frame turns encoded camera payloads into RGBA pixel buffers.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"time"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"drone-facade/internal/types"
)

// maxFramePixels caps the declared image size accepted before pixel data
// is allocated.
const maxFramePixels = 4096 * 4096

type Decoder struct {
	// Observe, when set, receives the duration of each decode attempt.
	Observe func(time.Duration)
}

// Decode interprets raw as a compressed color image. Empty, corrupt or
// unsupported payloads yield a nil image and an error wrapping
// types.ErrDecodeFailure; Decode never panics.
func (d *Decoder) Decode(raw []byte) (img *image.RGBA, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("%w: decoder panic: %v", types.ErrDecodeFailure, r)
		}
		if d.Observe != nil {
			d.Observe(time.Since(start))
		}
	}()

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", types.ErrDecodeFailure)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDecodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxFramePixels {
		return nil, fmt.Errorf("%w: %s image %dx%d out of range", types.ErrDecodeFailure, format, cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDecodeFailure, err)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s image has no pixels", types.ErrDecodeFailure, format)
	}

	return toRGBA(src), nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

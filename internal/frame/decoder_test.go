package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"runtime"
	"strings"
	"testing"
	"time"

	"drone-facade/internal/types"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	return img
}

func TestDecodePNGRoundTrip(t *testing.T) {
	src := testImage(8, 6)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	var d Decoder
	got, err := d.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}
	if !bytes.Equal(got.Pix, src.Pix) || got.Rect != src.Rect {
		t.Error("decoded PNG differs from source")
	}
}

func TestDecodeJPEGDimensions(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(32, 24), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}

	var d Decoder
	got, err := d.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}
	if got.Bounds().Dx() != 32 || got.Bounds().Dy() != 24 {
		t.Errorf("bounds = %v, want 32x24", got.Bounds())
	}
}

func TestDecodeFailures(t *testing.T) {
	var jpegBuf bytes.Buffer
	_ = jpeg.Encode(&jpegBuf, testImage(16, 16), nil)
	truncated := jpegBuf.Bytes()[:jpegBuf.Len()/3]

	tests := []struct {
		name string
		raw  []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"garbage", []byte("definitely not an image")},
		{"jpeg header only", []byte{0xFF, 0xD8, 0xFF, 0xE0}},
		{"truncated jpeg", truncated},
	}

	var d Decoder
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := d.Decode(tt.raw)
			if img != nil {
				t.Error("expected nil image")
			}
			if !errors.Is(err, types.ErrDecodeFailure) {
				t.Errorf("err = %v, want ErrDecodeFailure", err)
			}
		})
	}
}

func TestDecodeObserve(t *testing.T) {
	calls := 0
	d := Decoder{Observe: func(time.Duration) { calls++ }}

	_, _ = d.Decode(nil)
	_, _ = d.Decode([]byte("x"))

	if calls != 2 {
		t.Errorf("Observe calls = %d, want 2", calls)
	}
}

func pngChunk(typ string, data []byte) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, uint32(len(data)))
	b.WriteString(typ)
	b.Write(data)
	_ = binary.Write(&b, binary.BigEndian, crc32.ChecksumIEEE(append([]byte(typ), data...)))
	return b.Bytes()
}

// headerOnlyPNG declares a w x h RGBA image but carries no pixel data.
func headerOnlyPNG(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha

	var b bytes.Buffer
	b.WriteString("\x89PNG\r\n\x1a\n")
	b.Write(pngChunk("IHDR", ihdr))
	b.Write(pngChunk("IDAT", []byte{0x78, 0x9c, 0x03, 0x00, 0x00, 0x00, 0x00, 0x01}))
	b.Write(pngChunk("IEND", nil))
	return b.Bytes()
}

// headerOnlyJPEG is a baseline SOF0 header for a w x h image with no scan.
func headerOnlyJPEG(w, h uint16) []byte {
	b := []byte{0xFF, 0xD8, 0xFF, 0xC0, 0x00, 0x11, 0x08}
	b = binary.BigEndian.AppendUint16(b, h)
	b = binary.BigEndian.AppendUint16(b, w)
	b = append(b, 3, 1, 0x11, 0, 2, 0x11, 0, 3, 0x11, 0)
	return append(b, 0xFF, 0xD9)
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"png", headerOnlyPNG(20000, 20000)},
		{"png one row too many", headerOnlyPNG(4096, 4097)},
		{"jpeg", headerOnlyJPEG(60000, 60000)},
	}

	var d Decoder
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			img, err := d.Decode(tt.raw)
			runtime.ReadMemStats(&after)

			if img != nil {
				t.Error("expected nil image")
			}
			if !errors.Is(err, types.ErrDecodeFailure) {
				t.Errorf("err = %v, want ErrDecodeFailure", err)
			}
			if grown := after.TotalAlloc - before.TotalAlloc; grown > 16<<20 {
				t.Errorf("Decode allocated %d bytes for a rejected header", grown)
			}
		})
	}
}

func TestDecodeSizeCheckPassesSmallHeader(t *testing.T) {
	var d Decoder
	// Declared size is within range; the missing pixel data is what fails.
	_, err := d.Decode(headerOnlyPNG(64, 64))
	if !errors.Is(err, types.ErrDecodeFailure) {
		t.Fatalf("err = %v, want ErrDecodeFailure", err)
	}
	if strings.Contains(err.Error(), "out of range") {
		t.Errorf("64x64 header rejected as oversized: %v", err)
	}
}

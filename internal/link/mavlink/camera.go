package mavlink

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"

	"drone-facade/internal/types"
)

const (
	readChunk    = 64 * 1024
	maxBuffered  = 4 * 1024 * 1024
	jpegMarkerSz = 2
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// Camera reads JPEG frames from the vehicle's TCP video stream. The
// connection is opened on first use and dropped on any I/O error.
type Camera struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	buf  []byte
}

func NewCamera(addr string, timeout time.Duration) *Camera {
	return &Camera{addr: addr, timeout: timeout}
}

// Frame returns the next complete JPEG image in the stream.
func (c *Camera) Frame() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: camera dial %s: %v", types.ErrTransportDenied, c.addr, err)
		}
		c.conn = conn
		c.buf = c.buf[:0]
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		c.resetLocked()
		return nil, fmt.Errorf("%w: camera deadline: %v", types.ErrTransportDenied, err)
	}

	chunk := make([]byte, readChunk)
	for {
		frame, rest, ok := extractJPEG(c.buf)
		if ok {
			c.buf = append(c.buf[:0], rest...)
			return frame, nil
		}
		c.buf = rest

		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
			if len(c.buf) > maxBuffered {
				c.buf = append(c.buf[:0], c.buf[len(c.buf)-maxBuffered:]...)
			}
		}
		if err != nil {
			c.resetLocked()
			return nil, fmt.Errorf("%w: camera read: %v", types.ErrTransportDenied, err)
		}
	}
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Camera) resetLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.buf = c.buf[:0]
}

// extractJPEG finds the first SOI..EOI span in buf. When no complete frame
// is present, rest is what is worth keeping for the next read.
func extractJPEG(buf []byte) (frame, rest []byte, ok bool) {
	soi := bytes.Index(buf, jpegSOI)
	if soi < 0 {
		// Keep a trailing 0xFF, it may start a marker split across reads.
		if n := len(buf); n > 0 && buf[n-1] == 0xFF {
			return nil, buf[n-1:], false
		}
		return nil, buf[:0], false
	}

	eoi := bytes.Index(buf[soi+jpegMarkerSz:], jpegEOI)
	if eoi < 0 {
		return nil, buf[soi:], false
	}

	end := soi + jpegMarkerSz + eoi + jpegMarkerSz
	frame = append([]byte(nil), buf[soi:end]...)
	return frame, buf[end:], true
}

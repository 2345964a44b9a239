package camera

import (
	"bytes"
	"io"
)

var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

// FrameReader demuxes a continuous MJPEG byte stream into discrete JPEG
// frames (SOI through EOI inclusive). It tolerates arbitrary chunk sizes
// and markers split across reads; one subprocess read is never assumed to
// be one frame.
type FrameReader struct {
	r     io.Reader
	buf   []byte
	chunk []byte
	err   error
}

// NewFrameReader wraps a byte source, typically the stdout of the
// movie-capture subprocess.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, chunk: make([]byte, 4096)}
}

// Next returns the next complete frame. It returns the source's error
// (io.EOF when the subprocess exited) once no further frame can be
// assembled; a trailing incomplete frame is discarded silently.
func (f *FrameReader) Next() ([]byte, error) {
	for {
		if frame, ok := f.extract(); ok {
			return frame, nil
		}
		if f.err != nil {
			return nil, f.err
		}
		n, err := f.r.Read(f.chunk)
		if n > 0 {
			f.buf = append(f.buf, f.chunk[:n]...)
		}
		if err != nil {
			// Remember the error but try once more with what arrived
			// alongside it.
			f.err = err
		}
	}
}

// extract cuts one complete frame out of the accumulated buffer.
func (f *FrameReader) extract() ([]byte, bool) {
	start := bytes.Index(f.buf, jpegSOI)
	if start == -1 {
		// Keep the last 3 bytes so a marker split across chunk
		// boundaries is still found.
		if len(f.buf) > 3 {
			f.buf = f.buf[len(f.buf)-3:]
		}
		return nil, false
	}
	if start > 0 {
		f.buf = f.buf[start:]
	}

	end := bytes.Index(f.buf[len(jpegSOI):], jpegEOI)
	if end == -1 {
		return nil, false
	}

	frameLen := len(jpegSOI) + end + len(jpegEOI)
	frame := append([]byte(nil), f.buf[:frameLen]...)
	f.buf = f.buf[frameLen:]
	return frame, true
}

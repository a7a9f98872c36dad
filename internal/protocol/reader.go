package protocol

import (
	"bytes"
	"errors"
	"io"
)

// DefaultMaxFrameSize is the request size limit servers apply to peers.
const DefaultMaxFrameSize = 4 << 20

// ErrFrameTooLarge is returned, wrapped in a *FrameError, when a frame grows
// past the reader's limit. The rest of that frame is skipped.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// FrameReader yields frames from a byte stream.
//
// Bytes already read survive a failed Read, so a caller may use read
// deadlines and call Next again after a timeout without losing data.
type FrameReader struct {
	r       io.Reader
	buf     []byte
	chunk   []byte
	err     error
	maxSize int
	// scanned is how much of buf is known to hold no terminator.
	scanned int
	// skipping drops input up to the next terminator after an oversized frame.
	skipping bool
}

// NewFrameReader returns a reader without a frame size limit.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderSize(r, 0)
}

// NewFrameReaderSize returns a reader that rejects frames longer than
// maxSize bytes. maxSize <= 0 means no limit.
func NewFrameReaderSize(r io.Reader, maxSize int) *FrameReader {
	return &FrameReader{r: r, chunk: make([]byte, 4096), maxSize: maxSize}
}

// Next returns the next frame. Malformed frames come back as *FrameError and
// the reader stays usable; read errors are returned as is.
func (fr *FrameReader) Next() (Frame, error) {
	for {
		if fr.skipping {
			if i := bytes.IndexByte(fr.buf, Terminator); i >= 0 {
				fr.buf = fr.buf[i+1:]
				fr.skipping = false
			} else {
				fr.buf = fr.buf[:0]
			}
			fr.scanned = 0
		}

		if !fr.skipping && bytes.IndexByte(fr.buf[fr.scanned:], Terminator) >= 0 {
			f, rest, err := Decode(fr.buf)
			fr.buf = rest
			fr.scanned = 0
			return f, err
		}
		fr.scanned = len(fr.buf)

		if fr.err != nil {
			err := fr.err
			fr.err = nil
			return Frame{}, err
		}

		if fr.maxSize > 0 && !fr.skipping && len(fr.buf) > fr.maxSize {
			fr.buf = fr.buf[:0]
			fr.scanned = 0
			fr.skipping = true
			return Frame{}, &FrameError{Err: ErrFrameTooLarge}
		}

		n, err := fr.r.Read(fr.chunk)
		fr.buf = append(fr.buf, fr.chunk[:n]...)
		if err != nil {
			fr.err = err
		}
	}
}

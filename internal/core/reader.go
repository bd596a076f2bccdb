package core

import "io"

// SizeLimitedReader counts the bytes read through it and fails with
// ErrFileTooLarge once more than Max bytes have been read.
type SizeLimitedReader struct {
	reader    io.Reader
	BytesRead int64
	Max       int64 // zero means unlimited
}

// NewSizeLimitedReader wraps r. A non-positive max disables the limit.
func NewSizeLimitedReader(r io.Reader, max int64) *SizeLimitedReader {
	return &SizeLimitedReader{reader: r, Max: max}
}

// Read implements io.Reader.
func (r *SizeLimitedReader) Read(p []byte) (int, error) {
	if r.Max > 0 {
		// Allow one byte past the limit so an exact-size file is accepted.
		if remaining := r.Max + 1 - r.BytesRead; int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Max > 0 && r.BytesRead > r.Max {
		return n, ErrFileTooLarge
	}
	return n, err
}

// Package payload generates and consumes the synthetic bodies exchanged
// during throughput tests. Only length and transfer cost matter; the
// content is a fixed filler byte.
package payload

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/robertodauria/speedtest/pkg/speedtest/spec"
)

// Filler is the byte every generated payload is made of.
const Filler = 'x'

var (
	// ErrInvalidSize is returned for non-numeric, non-positive or oversized
	// payload sizes.
	ErrInvalidSize = errors.New("invalid payload size")
	// ErrTooLarge is returned when a received body exceeds the upload cap.
	ErrTooLarge = errors.New("payload too large")
)

// chunk is shared by every reader. It is never written after init.
var chunk = func() []byte {
	b := make([]byte, 32<<10)
	for i := range b {
		b[i] = Filler
	}
	return b
}()

type fillReader struct {
	remaining int64
}

func (f *fillReader) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}
	n := 0
	for n < len(p) {
		n += copy(p[n:], chunk)
	}
	f.remaining -= int64(n)
	return n, nil
}

// Generate returns a reader yielding exactly size filler bytes. The payload
// is produced on the fly, so memory use does not depend on size. Callers
// bound size, see ParseSize.
func Generate(size int64) (io.Reader, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &fillReader{remaining: size}, nil
}

// ParseSize parses the size querystring parameter. An empty value selects
// spec.DefaultDownloadSize. Values that are not positive integers or that
// exceed max are rejected.
func ParseSize(raw string, max int64) (int64, error) {
	if raw == "" {
		return spec.DefaultDownloadSize, nil
	}
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, raw)
	}
	if size <= 0 || size > max {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return size, nil
}

// Accept reads r until EOF, discarding the data, and returns the number of
// bytes read. If r yields more than limit bytes, Accept stops reading and
// returns ErrTooLarge with a zero count.
func Accept(r io.Reader, limit int64) (int64, error) {
	n, err := io.Copy(io.Discard, io.LimitReader(r, limit+1))
	if err != nil {
		return 0, err
	}
	if n > limit {
		return 0, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return n, nil
}

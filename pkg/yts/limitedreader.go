package yts

import (
	"errors"
	"io"
)

// ErrResponseTooLarge is returned when an index response body exceeds the read cap.
var ErrResponseTooLarge = errors.New("response too large")

// limitReader returns a Reader that yields at most n bytes from r and then
// fails with err if r still has data, or io.EOF if r is exhausted.
func limitReader(r io.Reader, n int64, err error) io.Reader {
	return &limitedReader{r: r, n: n, err: err}
}

type limitedReader struct {
	r   io.Reader
	n   int64
	err error
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		var probe [1]byte
		for {
			n, err := l.r.Read(probe[:])
			if n > 0 {
				return 0, l.err
			}
			if err != nil {
				return 0, err
			}
		}
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

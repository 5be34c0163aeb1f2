package transport

import (
	"io"
	"net/http"
)

type bodyLimiter struct {
	next http.RoundTripper
	max  int64
}

// limitBody makes reading a response body fail with ErrBodyTooLarge once more than
// max bytes were read.
func limitBody(next http.RoundTripper, max int64) http.RoundTripper {
	return bodyLimiter{next: next, max: max}
}

func (l bodyLimiter) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := l.next.RoundTrip(req)
	if err != nil {
		return res, err
	}
	if res.ContentLength > l.max {
		res.Body.Close()
		return nil, ErrBodyTooLarge
	}
	res.Body = &limitedBody{body: res.Body, remaining: l.max}
	return res, nil
}

type limitedBody struct {
	body      io.ReadCloser
	remaining int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, ErrBodyTooLarge
	}
	// read one byte past the limit to tell an exact fit from an overflow
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.body.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n, ErrBodyTooLarge
	}
	return n, err
}

func (b *limitedBody) Close() error {
	return b.body.Close()
}

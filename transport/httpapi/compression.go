package httpapi

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	errBodyTooLarge         = errors.New("response body exceeds maximum size limit")
	errDecompressedTooLarge = errors.New("decompressed data exceeds maximum size limit")
)

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress request: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// limitedReader fails with errTooLarge once more than limit bytes are read,
// rather than silently truncating like io.LimitReader.
type limitedReader struct {
	r           io.Reader
	limit       int64
	consumed    int64
	errTooLarge error
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.consumed > l.limit {
		return 0, l.errTooLarge
	}
	if room := l.limit - l.consumed + 1; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := l.r.Read(p)
	l.consumed += int64(n)
	if l.consumed > l.limit {
		return n, l.errTooLarge
	}
	return n, err
}

// readBody reads the response honouring both the wire and the decompressed
// size limits. A zero limit means unlimited.
func readBody(resp *http.Response, limits Limits) ([]byte, error) {
	var r io.Reader = resp.Body
	if limits.MaxBodyBytes > 0 {
		r = &limitedReader{r: r, limit: limits.MaxBodyBytes, errTooLarge: errBodyTooLarge}
	}

	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip response: %w", err)
		}
		defer zr.Close()
		r = zr
		if limits.MaxDecompressedBytes > 0 {
			r = &limitedReader{r: r, limit: limits.MaxDecompressedBytes, errTooLarge: errDecompressedTooLarge}
		}
	}

	return io.ReadAll(r)
}

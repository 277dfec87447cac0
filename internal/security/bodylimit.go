// Package security holds HTTP hardening middleware for the quote API.
package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/noah-isme/atoll-quote/internal/common"
)

// DefaultMaxBody caps quote request payloads. Ten legs with guests,
// components and transfers fit comfortably below it.
const DefaultMaxBody int64 = 256 << 10

// BodyLimit buffers request bodies up to Max bytes and rejects anything
// larger with 413 PAYLOAD_TOO_LARGE.
type BodyLimit struct {
	Max int64
}

func (b BodyLimit) limit() int64 {
	if b.Max <= 0 {
		return DefaultMaxBody
	}
	return b.Max
}

// Middleware enforces the limit before the handler decodes JSON.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		maxBytes := b.limit()
		if r.ContentLength > maxBytes {
			tooLarge(w)
			return
		}

		buf, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		_ = r.Body.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable request body", nil)
			return
		}
		if int64(len(buf)) > maxBytes {
			tooLarge(w)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func tooLarge(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body exceeds the allowed size", nil)
}

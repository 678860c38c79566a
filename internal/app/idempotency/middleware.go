package idempotency

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Yassin6up/somoo-sub000/internal/httputil"
	"github.com/Yassin6up/somoo-sub000/pkg/logger"
)

const (
	HeaderKey    = "Idempotency-Key"
	HeaderReplay = "Idempotent-Replayed"
	maxKeyLength = 128
)

// ScopeFunc returns the caller identity a key is scoped to.
type ScopeFunc func(r *http.Request) string

// Middleware wraps handlers whose effects must apply at most once per key.
// Requests without the header pass through untouched. Responses with a 5xx
// status are not stored so the client may retry, and a panicking handler
// releases its key before the panic continues.
func Middleware(store Store, ttl time.Duration, scope ScopeFunc, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("idempotency")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderKey))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				httputil.WriteErrorResponse(w, http.StatusBadRequest, "INVALID_INPUT", "Idempotency-Key is too long", nil)
				return
			}
			storeKey := scope(r) + ":" + r.Method + ":" + r.URL.Path + ":" + key

			rec, err := store.Reserve(r.Context(), storeKey, ttl)
			switch {
			case errors.Is(err, ErrInFlight):
				httputil.WriteErrorResponse(w, http.StatusConflict, "CONFLICT", "a request with this Idempotency-Key is still being processed", nil)
				return
			case err != nil:
				log.WithError(err).Error("idempotency reservation failed")
				httputil.WriteErrorResponse(w, http.StatusServiceUnavailable, "INTERNAL_ERROR", "idempotency store unavailable", nil)
				return
			case rec != nil:
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set(HeaderReplay, "true")
				w.WriteHeader(rec.Status)
				_, _ = w.Write(rec.Body)
				return
			}

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if v := recover(); v != nil {
					if err := store.Release(r.Context(), storeKey); err != nil {
						log.WithError(err).Warn("failed to release idempotency key after panic")
					}
					panic(v)
				}
			}()
			next.ServeHTTP(capture, r)

			if capture.status >= http.StatusInternalServerError {
				if err := store.Release(r.Context(), storeKey); err != nil {
					log.WithError(err).Warn("failed to release idempotency key")
				}
				return
			}
			err = store.Complete(r.Context(), storeKey, Record{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}, ttl)
			if err != nil {
				log.WithError(err).Warn("failed to store idempotent response")
			}
		})
	}
}

type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

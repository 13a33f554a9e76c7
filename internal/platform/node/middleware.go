package node

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/tokenized/pkg/logger"

	"github.com/pkg/errors"
)

// Middleware wraps a Handler to add behavior before or after it.
type Middleware func(Handler) Handler

// wrapMiddleware wraps a handler with some middleware. The first middleware is the outermost.
func wrapMiddleware(handler Handler, mw []Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}

	return handler
}

// RequestLogger logs each request with its status and duration.
func RequestLogger(next Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v, ok := ctx.Value(KeyValues).(*Values)
		if !ok {
			return errors.New("Request values missing from context")
		}

		err := next(ctx, w, r)

		logger.Info(ctx, "%s %s -> %d (%s)", r.Method, r.URL.Path, v.StatusCode,
			time.Since(v.Now))

		return err
	}
}

// ErrorHandler logs errors returned by handlers and recovers from panics.
func ErrorHandler(next Handler) Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				LogError(ctx, "Panic : %v", recovered)
				err = errors.Errorf("panic : %v", recovered)
			}
		}()

		if err = next(ctx, w, r); err != nil {
			if v, ok := ctx.Value(KeyValues).(*Values); ok {
				v.Error = true
			}
			LogWarn(ctx, "Request failed : %s", err)
		}

		return err
	}
}

// RequireKey refuses requests that don't carry the key as an "Authorization: Bearer" header.
// An empty key refuses every request.
func RequireKey(key string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			header := r.Header.Get("Authorization")
			if len(key) == 0 || !strings.HasPrefix(header, "Bearer ") ||
				subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(header, "Bearer ")),
					[]byte(key)) != 1 {
				return errors.Wrapf(ErrUnauthorized, "%s %s", r.Method, r.URL.Path)
			}

			return next(ctx, w, r)
		}
	}
}

// LimitBody caps the size of request bodies. Reading past the limit fails and the handler responds
// with ErrBodyTooLarge.
func LimitBody(limit int64) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}

			return next(ctx, w, r)
		}
	}
}

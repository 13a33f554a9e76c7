package node

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("Entity not found")

	// ErrBadRequest is returned when a request can't be parsed or is invalid.
	ErrBadRequest = errors.New("Bad request")

	// ErrUnauthorized is returned when a request lacks the credentials a route requires.
	ErrUnauthorized = errors.New("Unauthorized")

	// ErrBodyTooLarge is returned when a request body is over the configured limit.
	ErrBodyTooLarge = errors.New("Request body too large")
)

// DecodeJSON decodes the request body into v. A body that isn't JSON returns ErrBadRequest and one
// over the limit set by LimitBody returns ErrBodyTooLarge.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return errors.Wrapf(ErrBodyTooLarge, "limit %d", maxBytes.Limit)
		}
		return errors.Wrap(ErrBadRequest, err.Error())
	}

	return nil
}

// Error carries the http status code for an error returned by a handler.
type Error struct {
	Err    error
	Status int
}

// NewRequestError wraps err with the status code to respond with.
func NewRequestError(err error, status int) error {
	return &Error{Err: err, Status: status}
}

func (e *Error) Error() string {
	return e.Err.Error()
}

// ErrorResponse is the body of an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Respond sends data as JSON with the status code.
func Respond(ctx context.Context, w http.ResponseWriter, data interface{}, statusCode int) error {
	if v, ok := ctx.Value(KeyValues).(*Values); ok {
		v.StatusCode = statusCode
	}

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	js, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal response")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(js); err != nil {
		return errors.Wrap(err, "write response")
	}

	return nil
}

// RespondError sends the error as JSON. The status comes from a wrapped *Error, or from the
// package's sentinel errors, and defaults to internal server error.
func RespondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := http.StatusText(status)

	if requestErr, ok := errors.Cause(err).(*Error); ok {
		status = requestErr.Status
		message = requestErr.Err.Error()
	} else {
		switch errors.Cause(err) {
		case ErrNotFound:
			status = http.StatusNotFound
			message = err.Error()
		case ErrBadRequest:
			status = http.StatusBadRequest
			message = err.Error()
		case ErrUnauthorized:
			status = http.StatusUnauthorized
			message = http.StatusText(status)
		case ErrBodyTooLarge:
			status = http.StatusRequestEntityTooLarge
			message = err.Error()
		}
	}

	if err := Respond(ctx, w, ErrorResponse{Error: message}, status); err != nil {
		LogError(ctx, "Failed to respond with error : %s", err)
	}
}

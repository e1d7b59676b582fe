package web

import (
	"errors"

	"github.com/freekieb7/embedio/http"
)

// HTTPError is a failure answered with StatusCode.
type HTTPError struct {
	StatusCode int
	Message    string
}

// NewHTTPError uses the status text when message is empty.
func NewHTTPError(status int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{StatusCode: status, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Result is the outcome of a handler: a body or a failure.
type Result struct {
	status int
	body   any
	err    *HTTPError
}

// Success answers 200 with body. A nil body answers 204.
func Success(body any) Result {
	if body == nil {
		return Result{status: http.StatusNoContent}
	}
	return Result{status: http.StatusOK, body: body}
}

func SuccessWithStatus(status int, body any) Result {
	return Result{status: status, body: body}
}

func Failure(status int, message string) Result {
	return Result{err: NewHTTPError(status, message)}
}

func (r Result) IsSuccess() bool {
	return r.err == nil
}

func (r Result) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// write serializes r: strings as text, bytes as octets, anything else as JSON.
func (r Result) write(res *http.Response) error {
	if r.err != nil {
		return r.err
	}

	res.WithStatus(r.status)
	switch body := r.body.(type) {
	case nil:
		return nil
	case string:
		return res.WithText(body)
	case []byte:
		res.Header.Set("Content-Type", "application/octet-stream")
		res.ContentLength = int64(len(body))
		_, err := res.Write(body)
		return err
	default:
		return res.WithJSON(body)
	}
}

type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// WriteError answers err as a JSON error body. Errors other than *HTTPError
// become a 500 without detail. Once headers are out the connection is
// closed instead.
func WriteError(ctx *http.Context, err error) {
	res := ctx.Response
	if res.HeadersSent() {
		res.KeepAlive = false
		return
	}

	herr := NewHTTPError(http.StatusInternalServerError, "")
	errors.As(err, &herr)

	res.WithStatus(herr.StatusCode)
	res.Header.Del("Content-Length")
	res.Header.Del("Content-Encoding")
	res.ContentLength = -1
	if herr.StatusCode == http.StatusNotModified {
		res.ContentLength = 0
		return
	}
	res.WithJSON(errorBody{Status: herr.StatusCode, Message: herr.Message})
}

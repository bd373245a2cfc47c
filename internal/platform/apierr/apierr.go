// Package apierr renders every API failure as
//
//	{"message": "...", "errors": {"field": ["..."]}}
//
// with "errors" present only for field-level validation failures.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Error is an HTTP-aware API error.
type Error struct {
	Status  int                 `json:"-"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Errors)
}

// StatusCode lets middleware read the status without importing this package.
func (e *Error) StatusCode() int { return e.Status }

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Fields builds a 400 from field errors.
func Fields(fields map[string][]string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "validation failed", Errors: fields}
}

// Field is Fields for a single field and message.
func Field(field, msg string) *Error {
	return Fields(map[string][]string{field: {msg}})
}

func BadRequest(msg string) *Error { return New(http.StatusBadRequest, msg) }
func NotFound(msg string) *Error   { return New(http.StatusNotFound, msg) }
func Conflict(msg string) *Error   { return New(http.StatusConflict, msg) }

// HTTPErrorHandler replaces echo's default so that *Error, *echo.HTTPError
// and unknown errors all produce the same body shape. 5xx causes are logged
// and never leaked to the client.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		body := Resolve(err)
		if body.Status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(body.Status)
		} else {
			writeErr = c.JSON(body.Status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

// Resolve maps any error to the rendered body.
func Resolve(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		case nil:
		default:
			msg = fmt.Sprint(m)
		}
		return &Error{Status: he.Code, Message: msg}
	}
	return &Error{Status: http.StatusInternalServerError, Message: "internal server error"}
}

// StatusOf returns the HTTP status an error will be rendered with.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return Resolve(err).Status
}

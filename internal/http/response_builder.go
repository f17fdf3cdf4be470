// Package http serves the analysis API.
//
// This file holds the fluent builder every handler writes its response with
// and the mapping from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"finwise/internal/api"
	"finwise/internal/core"
	"finwise/internal/report"
	"finwise/internal/services"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON encodes v as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("encode response: %w", err)
		return b
	}
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.body = append(data, '\n')
	return b
}

// File sets a binary body.
func (b *ResponseBuilder) File(contentType string, data []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Length"] = strconv.Itoa(len(data))
	b.body = data
	return b
}

// Attachment sets a binary body offered for download as name.
func (b *ResponseBuilder) Attachment(name, contentType string, data []byte) *ResponseBuilder {
	b.headers["Content-Disposition"] = fmt.Sprintf("attachment; filename=%q", name)
	return b.File(contentType, data)
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		ErrorResponse(http.StatusInternalServerError, "internal error").Write(w)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// errorBody is the JSON shape of every error answer.
type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message, Status: statusCode})
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// requestError marks errors caused by the request itself.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// statusFor maps an error to its status code and the message shown to the
// caller. Upstream and internal details are not exposed.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	var apiErr *api.APIError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, core.ErrInvalidMonthKey),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, services.ErrNoDestination):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, api.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, report.ErrNoData):
		return http.StatusNotFound, "no data for the requested period"
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		return http.StatusBadRequest, apiErr.Message
	case errors.Is(err, api.ErrUnavailable), errors.As(err, &apiErr):
		return http.StatusBadGateway, "backend unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

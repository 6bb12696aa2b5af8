package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/practicebilling/pkg/apperr"
	"github.com/dmitrymomot/practicebilling/pkg/logger"
	"github.com/dmitrymomot/practicebilling/pkg/validator"
)

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Retryable bool                `json:"retryable"`
	Details   map[string][]string `json:"details,omitempty"`
}

// Response renders itself.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

type jsonResponse struct {
	status int
	body   JSONResponse
	err    error
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON responds with data and status.
func JSON(status int, data any) Response {
	return jsonResponse{status: status, body: JSONResponse{Data: data}}
}

// Error responds with the classified error. Data is optional and lets a
// handler return an outcome alongside the error.
func Error(err error, data ...any) Response {
	resp := jsonResponse{
		status: apperr.HTTPStatus(err),
		body:   JSONResponse{Error: errorDetail(err)},
		err:    err,
	}
	if len(data) > 0 {
		resp.body.Data = data[0]
	}
	return resp
}

func errorDetail(err error) *ErrorDetail {
	d := &ErrorDetail{
		Code:      apperr.Code(err),
		Message:   apperr.UserMessage(err),
		Retryable: apperr.IsRetryable(err),
	}
	if _, ok := apperr.As(err); !ok {
		d.Code = "INTERNAL_ERROR"
		d.Retryable = false
	}
	if ve := validator.Extract(err); len(ve) > 0 {
		d.Details = make(map[string][]string, len(ve))
		for _, e := range ve {
			d.Details[e.Field] = append(d.Details[e.Field], e.Message)
		}
	}
	return d
}

// HandlerFunc returns the response for a request.
type HandlerFunc func(r *http.Request) Response

// handle renders h's response and logs errors by severity.
func handle(log *slog.Logger, h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h(r)
		if jr, ok := resp.(jsonResponse); ok && jr.err != nil {
			level := slog.LevelDebug
			if jr.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "request failed",
				slog.String("path", r.URL.Path),
				slog.Int("status", jr.status),
				logger.Error(jr.err),
			)
		}
		if err := resp.Render(w, r); err != nil {
			log.ErrorContext(r.Context(), "failed to render response", logger.Error(err))
		}
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return ErrMalformedBody.WithCause(err)
	}
	return nil
}

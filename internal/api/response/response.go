// Package response writes the JSON envelopes of the HTTP API: successful
// payloads under "data" and failures as {error, message, code, request_id}.
package response

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Envelope wraps a successful payload.
type Envelope struct {
	Data any `json:"data"`
}

// Failure is the body of every error response. RequestID matches the
// request_id field of the server's request log.
type Failure struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// fallback is sent when a body cannot be encoded.
var fallback = []byte(`{"error":"Internal Server Error","message":"failed to encode response","code":500}` + "\n")

// JSON encodes body and writes it with status. The body is encoded before the
// header goes out, so an unencodable body still produces a 500.
func JSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Int("status", status).Msg("Failed to encode response")
		status, payload = http.StatusInternalServerError, fallback
	} else {
		payload = append(payload, '\n')
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// Success writes data with 200 OK.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Data: data})
}

// Created writes data with 201 Created.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Data: data})
}

// Error writes a failure with status. err's text becomes the message.
func Error(w http.ResponseWriter, r *http.Request, status int, err error) {
	f := Failure{Error: http.StatusText(status), Code: status}
	if err != nil {
		f.Message = err.Error()
	}
	if r != nil {
		f.RequestID = middleware.GetReqID(r.Context())
	}
	JSON(w, status, f)
}

func BadRequest(w http.ResponseWriter, r *http.Request, err error) {
	Error(w, r, http.StatusBadRequest, err)
}

func NotFound(w http.ResponseWriter, r *http.Request, err error) {
	Error(w, r, http.StatusNotFound, err)
}

func Conflict(w http.ResponseWriter, r *http.Request, err error) {
	Error(w, r, http.StatusConflict, err)
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	Error(w, r, http.StatusServiceUnavailable, err)
}

// InternalError hides err from the client and logs it against the request id.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	event := log.Error().Err(err)
	if r != nil {
		event = event.Str("path", r.URL.Path).Str("request_id", middleware.GetReqID(r.Context()))
	}
	event.Msg("Request failed")
	Error(w, r, http.StatusInternalServerError, nil)
}

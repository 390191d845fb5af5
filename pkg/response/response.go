// Package response writes the bare JSON bodies the sync API returns. Success
// bodies are the payload itself; failures are {"error": "..."}.
package response

import (
	"bytes"
	"encoding/json"
	"net/http"
)

type ErrorBody struct {
	Error string `json:"error"`
}

const contentType = "application/json"

// JSON encodes data before touching the ResponseWriter so an encoding failure
// still produces a well-formed 500 instead of a truncated 200.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"failed to encode response"}` + "\n")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func Success(w http.ResponseWriter, data interface{}) { JSON(w, http.StatusOK, data) }

func Created(w http.ResponseWriter, data interface{}) { JSON(w, http.StatusCreated, data) }

func Error(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	JSON(w, status, ErrorBody{Error: msg})
}

func BadRequest(w http.ResponseWriter, msg string)      { Error(w, http.StatusBadRequest, msg) }
func Unauthorized(w http.ResponseWriter, msg string)    { Error(w, http.StatusUnauthorized, msg) }
func Forbidden(w http.ResponseWriter, msg string)       { Error(w, http.StatusForbidden, msg) }
func NotFound(w http.ResponseWriter, msg string)        { Error(w, http.StatusNotFound, msg) }
func TooManyRequests(w http.ResponseWriter, msg string) { Error(w, http.StatusTooManyRequests, msg) }
func InternalError(w http.ResponseWriter, msg string)   { Error(w, http.StatusInternalServerError, msg) }

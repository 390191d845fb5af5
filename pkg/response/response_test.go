package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestError(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		msg    string
	}{
		{name: "bad request", write: func(w http.ResponseWriter) { BadRequest(w, "dataType is required") }, status: http.StatusBadRequest, msg: "dataType is required"},
		{name: "unauthorized", write: func(w http.ResponseWriter) { Unauthorized(w, "Access token required") }, status: http.StatusUnauthorized, msg: "Access token required"},
		{name: "not found", write: func(w http.ResponseWriter) { NotFound(w, "Data not found") }, status: http.StatusNotFound, msg: "Data not found"},
		{name: "rate limited", write: func(w http.ResponseWriter) { TooManyRequests(w, "slow down") }, status: http.StatusTooManyRequests, msg: "slow down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var body ErrorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.msg {
				t.Errorf("error = %q, want %q", body.Error, tt.msg)
			}
		})
	}
}

func TestSuccessWritesBareBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"action": "synced"})

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["action"] != "synced" {
		t.Errorf("action = %q, want synced", body["action"])
	}
}

func TestErrorFallsBackToStatusText(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusForbidden, "")

	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "Forbidden" {
		t.Errorf("error = %q, want Forbidden", body.Error)
	}
}

func TestJSONEncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

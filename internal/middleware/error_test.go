package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantJSON   bool
	}{
		{
			name:       "no panic",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "string panic",
			handler:    func(w http.ResponseWriter, r *http.Request) { panic("booking store exploded") },
			wantStatus: http.StatusInternalServerError,
			wantJSON:   true,
		},
		{
			name: "runtime panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var cars map[string]int
				cars["civic"]++
			},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   true,
		},
		{
			name: "panic after headers sent",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				panic("late")
			},
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			ErrorHandler(zap.NewNop())(tt.handler).ServeHTTP(w, httptest.NewRequest("GET", "/api/cars", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if !tt.wantJSON {
				return
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}

			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success {
				t.Error("Expected success to be false")
			}
			if body.Error != "Internal Server Error" {
				t.Errorf("Expected error 'Internal Server Error', got '%s'", body.Error)
			}
			if body.Message != genericErrorMessage {
				t.Errorf("Expected message '%s', got '%s'", genericErrorMessage, body.Message)
			}
			if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
				t.Errorf("Expected RFC3339 timestamp, got '%s'", body.Timestamp)
			}
		})
	}
}

func TestErrorHandler_AbortHandlerPropagates(t *testing.T) {
	t.Parallel()

	handler := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("Expected http.ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/cars", nil))
}

func TestErrorHandler_PanicIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	handler := ErrorHandler(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/bookings", nil))

	entries := logs.FilterMessage("panic_recovered").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one panic_recovered entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["path"]; got != "/api/bookings" {
		t.Errorf("Expected path '/api/bookings', got %v", got)
	}
}

func TestRespondAppError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantLogged  bool
	}{
		{"validation", apperrors.Validation("email is required"), http.StatusBadRequest, "email is required", false},
		{"conflict", apperrors.Conflict("email already registered"), http.StatusConflict, "email already registered", false},
		{"unauthorized", apperrors.Unauthorized("token expired"), http.StatusUnauthorized, "token expired", false},
		{"forbidden", apperrors.Forbidden("admin access required"), http.StatusForbidden, "admin access required", false},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "An unexpected error occurred", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.ErrorLevel)
			w := httptest.NewRecorder()
			respondAppError(w, httptest.NewRequest("GET", "/api/cars", nil), tt.err, zap.New(core))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Message != tt.wantMessage {
				t.Errorf("Expected message '%s', got '%s'", tt.wantMessage, body.Message)
			}
			if logged := logs.Len() > 0; logged != tt.wantLogged {
				t.Errorf("Expected logged=%v, got %v", tt.wantLogged, logged)
			}
		})
	}
}

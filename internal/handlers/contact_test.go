package handlers

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/benvon/drivenova/internal/services/notify"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func TestContactHandler_Submit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"valid", map[string]string{"name": "Ann", "email": "ann@x.com", "phone": "555", "message": "Do you rent vans?"}, http.StatusCreated},
		{"missing message", map[string]string{"name": "Ann", "email": "ann@x.com", "phone": "555", "message": "   "}, http.StatusBadRequest},
		{"missing phone", map[string]string{"name": "Ann", "email": "ann@x.com", "message": "hi"}, http.StatusBadRequest},
		{"bad email", map[string]string{"name": "Ann", "email": "ann", "phone": "555", "message": "hi"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newTestAPI(t)
			w := api.do(http.MethodPost, "/api/contact", tt.body, "")
			expectStatus(t, w, tt.wantStatus)

			wantStored := 0
			if tt.wantStatus == http.StatusCreated {
				wantStored = 1
				if kinds := api.notifier.kinds(); len(kinds) != 1 || kinds[0] != notify.KindContactMessage {
					t.Errorf("Expected contact notification, got %v", kinds)
				}
			}
			if len(api.contacts.messages) != wantStored {
				t.Errorf("Expected %d stored messages, got %d", wantStored, len(api.contacts.messages))
			}
		})
	}
}

func TestContactHandler_RateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	limit := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) > 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	api := newTestAPI(t)
	r := mux.NewRouter()
	NewContactHandler(api.contacts, api.notifier, limit, zap.NewNop()).RegisterRoutes(r.PathPrefix("/api/contact").Subrouter())
	body := map[string]string{"name": "Ann", "email": "ann@x.com", "phone": "555", "message": "hi"}

	for i, want := range []int{http.StatusCreated, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		req := newTestRequest(http.MethodPost, "/api/contact", body)
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("request %d: expected status %d, got %d", i, want, w.Code)
		}
	}
}

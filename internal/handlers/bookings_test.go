package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/notify"
)

func validBookingBody() map[string]any {
	return map[string]any{
		"name":             "Ann",
		"email":            "Ann@x.com",
		"phone":            "+1 555 0100",
		"car_model":        "Model 3",
		"pickup_date":      "2026-05-01",
		"dropoff_date":     "2026-05-04T10:00:00Z",
		"pickup_location":  "Airport",
		"dropoff_location": "Downtown",
		"services":         []string{"GPS", "Child seat"},
		"total_amount":     360.5,
	}
}

func TestParseBookingDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-05-01", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), false},
		{"2026-05-01T12:30:00+02:00", time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC), false},
		{"01/05/2026", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := parseBookingDate("pickup_date", tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBookingHandler_Create(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(map[string]any)
		wantStatus int
	}{
		{"valid", func(map[string]any) {}, http.StatusCreated},
		{"dropoff before pickup", func(b map[string]any) { b["dropoff_date"] = "2026-04-30" }, http.StatusBadRequest},
		{"same day", func(b map[string]any) { b["dropoff_date"] = "2026-05-01" }, http.StatusBadRequest},
		{"negative total", func(b map[string]any) { b["total_amount"] = -1 }, http.StatusBadRequest},
		{"missing phone", func(b map[string]any) { delete(b, "phone") }, http.StatusBadRequest},
		{"bad email", func(b map[string]any) { b["email"] = "ann" }, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := newTestAPI(t)
			tok, userID := api.tokenFor(t, models.RoleUser)
			body := validBookingBody()
			tt.mutate(body)

			w := api.do(http.MethodPost, "/api/bookings", body, tok)
			expectStatus(t, w, tt.wantStatus)
			if tt.wantStatus != http.StatusCreated {
				if len(api.notifier.kinds()) != 0 {
					t.Errorf("Expected no notification, got %v", api.notifier.kinds())
				}
				return
			}

			if len(api.bookings.bookings) != 1 {
				t.Fatalf("Expected one stored booking, got %d", len(api.bookings.bookings))
			}
			b := api.bookings.bookings[0]
			if b.UserID != userID {
				t.Errorf("Expected booking owned by %s, got %s", userID, b.UserID)
			}
			if b.Email != "ann@x.com" {
				t.Errorf("Expected normalized email, got %s", b.Email)
			}
			if kinds := api.notifier.kinds(); len(kinds) != 1 || kinds[0] != notify.KindBookingCreated {
				t.Errorf("Expected booking notification, got %v", kinds)
			}
		})
	}
}

func TestBookingHandler_Lists(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	ann, _ := api.tokenFor(t, models.RoleUser)
	bob, _ := api.tokenFor(t, models.RoleUser)
	admin, _ := api.tokenFor(t, models.RoleAdmin)

	expectStatus(t, api.do(http.MethodPost, "/api/bookings", validBookingBody(), ann), http.StatusCreated)
	expectStatus(t, api.do(http.MethodPost, "/api/bookings", validBookingBody(), ann), http.StatusCreated)
	expectStatus(t, api.do(http.MethodPost, "/api/bookings", validBookingBody(), bob), http.StatusCreated)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantCount  int
	}{
		{"anonymous", "/api/bookings", "", http.StatusUnauthorized, 0},
		{"own bookings", "/api/bookings", ann, http.StatusOK, 2},
		{"other user", "/api/bookings", bob, http.StatusOK, 1},
		{"all as user", "/api/bookings/all", ann, http.StatusForbidden, 0},
		{"all as admin", "/api/bookings/all", admin, http.StatusOK, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := api.do(http.MethodGet, tt.path, nil, tt.token)
			expectStatus(t, w, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}
			if got := len(envelope(t, w)["data"].([]any)); got != tt.wantCount {
				t.Errorf("Expected %d bookings, got %d", tt.wantCount, got)
			}
		})
	}
}

package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/lib/pq"
)

func TestConflictOr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		wantConflict bool
		wantMessage  string
	}{
		{
			name:         "email unique violation",
			err:          &pq.Error{Code: uniqueViolation, Constraint: "users_email_lower_unique"},
			wantConflict: true,
			wantMessage:  "an account with this email already exists",
		},
		{
			name:         "wrapped plate violation",
			err:          fmt.Errorf("exec: %w", &pq.Error{Code: uniqueViolation, Constraint: "cars_plate_unique"}),
			wantConflict: true,
			wantMessage:  "a car with this license plate already exists",
		},
		{
			name:         "unknown constraint",
			err:          &pq.Error{Code: uniqueViolation, Constraint: "something_else"},
			wantConflict: true,
			wantMessage:  "record already exists",
		},
		{
			name:         "check violation is not a conflict",
			err:          &pq.Error{Code: "23514", Constraint: "users_has_credential"},
			wantConflict: false,
		},
		{
			name:         "plain error",
			err:          errors.New("connection reset"),
			wantConflict: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := conflictOr(tt.err)
			if apperrors.IsConflict(got) != tt.wantConflict {
				t.Fatalf("IsConflict = %v, want %v (err: %v)", !tt.wantConflict, tt.wantConflict, got)
			}
			if !tt.wantConflict {
				if got != tt.err {
					t.Errorf("Expected error to pass through unchanged, got %v", got)
				}
				return
			}
			if msg := apperrors.MessageOf(got); msg != tt.wantMessage {
				t.Errorf("Expected message '%s', got '%s'", tt.wantMessage, msg)
			}
			var pqErr *pq.Error
			if !errors.As(got, &pqErr) {
				t.Error("Expected driver error to remain reachable")
			}
		})
	}
}

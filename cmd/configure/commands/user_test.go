package commands

import (
	"context"
	"testing"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
)

type fakeRoleStore struct {
	user    *models.User
	updates int
}

func (f *fakeRoleStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.user == nil || f.user.Email != email {
		return nil, apperrors.NotFound("user not found")
	}
	return f.user, nil
}

func (f *fakeRoleStore) UpdateFields(ctx context.Context, id uuid.UUID, update models.UserUpdate) (*models.User, error) {
	f.updates++
	if update.Role != nil {
		f.user.Role = *update.Role
	}
	return f.user, nil
}

func TestSetRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		current     models.Role
		target      models.Role
		email       string
		wantChanged bool
		wantErr     bool
	}{
		{"promote user", models.RoleUser, models.RoleAdmin, "ann@x.com", true, false},
		{"demote admin", models.RoleAdmin, models.RoleUser, "ann@x.com", true, false},
		{"already admin", models.RoleAdmin, models.RoleAdmin, "ann@x.com", false, false},
		{"unknown email", models.RoleUser, models.RoleAdmin, "bob@x.com", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeRoleStore{user: &models.User{ID: uuid.New(), Email: "ann@x.com", Role: tt.current}}
			user, changed, err := setRole(context.Background(), store, tt.email, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("setRole() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !apperrors.IsNotFound(err) {
					t.Errorf("Expected not found error, got %v", err)
				}
				return
			}
			if changed != tt.wantChanged {
				t.Errorf("Expected changed=%v, got %v", tt.wantChanged, changed)
			}
			if user.Role != tt.target {
				t.Errorf("Expected role %s, got %s", tt.target, user.Role)
			}
			if !tt.wantChanged && store.updates != 0 {
				t.Errorf("Expected no update, got %d", store.updates)
			}
		})
	}
}

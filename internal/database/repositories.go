package database

import (
	"context"

	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
)

// CarRepositoryInterface defines the car catalog operations used by handlers
type CarRepositoryInterface interface {
	List(ctx context.Context, filter models.CarFilter) ([]*models.Car, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Car, error)
	Create(ctx context.Context, car *models.Car) error
	Update(ctx context.Context, car *models.Car) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BookingRepositoryInterface defines the booking operations used by handlers
type BookingRepositoryInterface interface {
	Create(ctx context.Context, b *models.Booking) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error)
	ListAll(ctx context.Context) ([]*models.Booking, error)
}

// ContactRepositoryInterface defines the contact form store
type ContactRepositoryInterface interface {
	Create(ctx context.Context, m *models.ContactMessage) error
}

// ProviderConfigStore defines read access to stored OAuth provider credentials
type ProviderConfigStore interface {
	GetAll(ctx context.Context) ([]*models.ProviderConfig, error)
}

// Ensure concrete types implement the interfaces
var (
	_ CarRepositoryInterface     = (*CarRepository)(nil)
	_ BookingRepositoryInterface = (*BookingRepository)(nil)
	_ ContactRepositoryInterface = (*ContactRepository)(nil)
	_ ProviderConfigStore        = (*ProviderConfigRepository)(nil)
)

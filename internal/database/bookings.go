package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const bookingColumns = `id, user_id, name, email, phone, car_model, pickup_date, dropoff_date, pickup_location, dropoff_location, services, total_amount, created_at, updated_at`

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new booking
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	if b.Services == nil {
		b.Services = []string{}
	}

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		b.ID,
		b.UserID,
		b.Name,
		b.Email,
		b.Phone,
		b.CarModel,
		b.PickupDate,
		b.DropoffDate,
		b.PickupLocation,
		b.DropoffLocation,
		pq.Array(b.Services),
		b.TotalAmount,
		now,
		now,
	).Scan(&b.CreatedAt, &b.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// ListByUser retrieves the bookings made by a user, newest first
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListAll retrieves every booking, newest first
func (r *BookingRepository) ListAll(ctx context.Context) ([]*models.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	bookings := []*models.Booking{}
	for rows.Next() {
		b := &models.Booking{}
		var services pq.StringArray
		err := rows.Scan(
			&b.ID,
			&b.UserID,
			&b.Name,
			&b.Email,
			&b.Phone,
			&b.CarModel,
			&b.PickupDate,
			&b.DropoffDate,
			&b.PickupLocation,
			&b.DropoffLocation,
			&services,
			&b.TotalAmount,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.Services = []string(services)
		if b.Services == nil {
			b.Services = []string{}
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const carColumns = `id, name, brand, plate, price_per_day, features, image_url, image_public_id, category, created_at, updated_at`

// CarRepository handles car catalog database operations
type CarRepository struct {
	db *DB
}

// NewCarRepository creates a new car repository
func NewCarRepository(db *DB) *CarRepository {
	return &CarRepository{db: db}
}

func scanCar(row rowScanner) (*models.Car, error) {
	car := &models.Car{}
	var publicID sql.NullString
	var features pq.StringArray
	err := row.Scan(
		&car.ID,
		&car.Name,
		&car.Brand,
		&car.Plate,
		&car.PricePerDay,
		&features,
		&car.ImageURL,
		&publicID,
		&car.Category,
		&car.CreatedAt,
		&car.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	car.Features = []string(features)
	if car.Features == nil {
		car.Features = []string{}
	}
	if publicID.Valid {
		car.ImagePublicID = &publicID.String
	}
	return car, nil
}

// buildCarListQuery renders the catalog query for filter, newest first.
// Category matches case-insensitively and name matches as a substring.
func buildCarListQuery(filter models.CarFilter) (string, []any) {
	var where []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.Category != nil && *filter.Category != "" {
		add("LOWER(category) = LOWER($%d)", string(*filter.Category))
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		add("name ILIKE $%d", "%"+escapeLike(name)+"%")
	}
	if filter.MinPrice != nil {
		add("price_per_day >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("price_per_day <= $%d", *filter.MaxPrice)
	}

	query := `SELECT ` + carColumns + ` FROM cars`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	return query, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// List retrieves cars matching filter, newest first
func (r *CarRepository) List(ctx context.Context, filter models.CarFilter) ([]*models.Car, error) {
	query, args := buildCarListQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cars := []*models.Car{}
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cars: %w", err)
	}

	return cars, nil
}

// GetByID retrieves a car by ID
func (r *CarRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Car, error) {
	car, err := scanCar(r.db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get car: %w", apperrors.NotFound("car not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get car: %w", err)
	}
	return car, nil
}

// Create inserts a new car. The plate is stored uppercase.
func (r *CarRepository) Create(ctx context.Context, car *models.Car) error {
	car.Plate = normalizePlate(car.Plate)
	if car.Features == nil {
		car.Features = []string{}
	}

	query := `
		INSERT INTO cars (` + carColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		car.ID,
		car.Name,
		car.Brand,
		car.Plate,
		car.PricePerDay,
		pq.Array(car.Features),
		car.ImageURL,
		car.ImagePublicID,
		car.Category,
		now,
		now,
	).Scan(&car.CreatedAt, &car.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create car: %w", conflictOr(err))
	}

	return nil
}

// Update replaces the mutable fields of an existing car
func (r *CarRepository) Update(ctx context.Context, car *models.Car) error {
	car.Plate = normalizePlate(car.Plate)
	if car.Features == nil {
		car.Features = []string{}
	}

	query := `
		UPDATE cars
		SET name = $2, brand = $3, plate = $4, price_per_day = $5, features = $6,
			image_url = $7, image_public_id = $8, category = $9, updated_at = $10
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		car.ID,
		car.Name,
		car.Brand,
		car.Plate,
		car.PricePerDay,
		pq.Array(car.Features),
		car.ImageURL,
		car.ImagePublicID,
		car.Category,
		time.Now().UTC(),
	).Scan(&car.CreatedAt, &car.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("update car: %w", apperrors.NotFound("car not found"))
	}
	if err != nil {
		return fmt.Errorf("failed to update car: %w", conflictOr(err))
	}

	return nil
}

// Delete deletes a car by ID
func (r *CarRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete car: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("delete car: %w", apperrors.NotFound("car not found"))
	}

	return nil
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/drivenova/internal/models"
)

// ContactRepository stores contact form submissions
type ContactRepository struct {
	db *DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create inserts a contact message
func (r *ContactRepository) Create(ctx context.Context, m *models.ContactMessage) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO contact_messages (id, name, email, phone, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, m.ID, m.Name, m.Email, m.Phone, m.Message, time.Now().UTC()).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	return nil
}

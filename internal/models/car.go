package models

import (
	"time"

	"github.com/google/uuid"
)

// CarCategory is the listing category of a car
type CarCategory string

const (
	CarCategorySedan    CarCategory = "sedan"
	CarCategorySUV      CarCategory = "suv"
	CarCategoryLuxury   CarCategory = "luxury"
	CarCategoryElectric CarCategory = "electric"
	CarCategoryTruck    CarCategory = "truck"
	CarCategoryOther    CarCategory = "other"
)

// Car represents a rentable car listing
type Car struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	Brand         string      `json:"brand"`
	Plate         string      `json:"plate"`
	PricePerDay   int         `json:"price_per_day"`
	Features      []string    `json:"features"`
	ImageURL      string      `json:"image_url"`
	ImagePublicID *string     `json:"image_public_id,omitempty"`
	Category      CarCategory `json:"category"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CarFilter narrows a car listing. Zero values mean no constraint.
type CarFilter struct {
	Category *CarCategory
	Name     string
	MinPrice *int
	MaxPrice *int
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/database"
	"github.com/benvon/drivenova/internal/middleware"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CarHandler handles the car catalog
type CarHandler struct {
	carRepo database.CarRepositoryInterface
	guard   *middleware.Guard
	logger  *zap.Logger
}

// NewCarHandler creates a new car handler
func NewCarHandler(carRepo database.CarRepositoryInterface, guard *middleware.Guard, logger *zap.Logger) *CarHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CarHandler{carRepo: carRepo, guard: guard, logger: logger}
}

// RegisterRoutes registers car routes on the given router
// The router should already have the /api/cars prefix
func (h *CarHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListCars).Methods("GET")
	r.Handle("", h.guard.ProtectAdmin(h.CreateCar)).Methods("POST")
	r.HandleFunc("/{id}", h.GetCar).Methods("GET")
	r.Handle("/{id}", h.guard.ProtectAdmin(h.UpdateCar)).Methods("PUT")
	r.Handle("/{id}", h.guard.ProtectAdmin(h.DeleteCar)).Methods("DELETE")
}

// CarRequest is the body of create and update
type CarRequest struct {
	Name          string             `json:"name" validate:"required,max=200"`
	Brand         string             `json:"brand" validate:"required,max=100"`
	Plate         string             `json:"plate" validate:"required,max=20"`
	PricePerDay   *int               `json:"price_per_day" validate:"required,gte=0"`
	Features      []string           `json:"features" validate:"max=50,dive,max=100"`
	ImageURL      string             `json:"image_url" validate:"required,http_url"`
	ImagePublicID *string            `json:"image_public_id,omitempty" validate:"omitempty,max=200"`
	Category      models.CarCategory `json:"category" validate:"required,car_category"`
}

func (req *CarRequest) normalize() {
	req.Name = validation.SanitizeText(req.Name)
	req.Brand = validation.SanitizeText(req.Brand)
	req.Plate = strings.ToUpper(strings.TrimSpace(req.Plate))
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.Category = models.CarCategory(strings.ToLower(strings.TrimSpace(string(req.Category))))
	features := make([]string, 0, len(req.Features))
	for _, f := range req.Features {
		if f = validation.SanitizeText(f); f != "" {
			features = append(features, f)
		}
	}
	req.Features = features
}

func (req *CarRequest) apply(car *models.Car) {
	car.Name = req.Name
	car.Brand = req.Brand
	car.Plate = req.Plate
	car.PricePerDay = *req.PricePerDay
	car.Features = req.Features
	car.ImageURL = req.ImageURL
	car.ImagePublicID = req.ImagePublicID
	car.Category = req.Category
}

// parseCarFilter reads category, name, min_price and max_price from the query string
func parseCarFilter(r *http.Request) (models.CarFilter, error) {
	q := r.URL.Query()
	var filter models.CarFilter

	if c := strings.ToLower(strings.TrimSpace(q.Get("category"))); c != "" {
		if err := validation.ValidateCarCategory(c); err != nil {
			return filter, apperrors.Validation(err.Error())
		}
		category := models.CarCategory(c)
		filter.Category = &category
	}
	filter.Name = strings.TrimSpace(q.Get("name"))

	for _, p := range []struct {
		key string
		dst **int
	}{
		{"min_price", &filter.MinPrice},
		{"max_price", &filter.MaxPrice},
	} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return filter, apperrors.Validation(p.key + " must be a non-negative integer")
		}
		*p.dst = &v
	}

	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return filter, apperrors.Validation("min_price must not exceed max_price")
	}
	return filter, nil
}

// ListCars lists the catalog, newest first
func (h *CarHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCarFilter(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	cars, err := h.carRepo.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, cars)
}

// GetCar returns one car
func (h *CarHandler) GetCar(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	car, err := h.carRepo.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, car)
}

// CreateCar adds a car to the catalog
func (h *CarHandler) CreateCar(w http.ResponseWriter, r *http.Request, caller models.Identity) {
	var req CarRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	req.normalize()
	if err := validation.Struct(req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	car := &models.Car{ID: uuid.New()}
	req.apply(car)
	if err := h.carRepo.Create(r.Context(), car); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("car_created",
		zap.String("car_id", car.ID.String()),
		zap.String("admin_id", caller.ID.String()),
	)
	respondJSON(w, http.StatusCreated, car)
}

// UpdateCar replaces a car's fields
func (h *CarHandler) UpdateCar(w http.ResponseWriter, r *http.Request, caller models.Identity) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req CarRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	req.normalize()
	if err := validation.Struct(req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	car := &models.Car{ID: id}
	req.apply(car)
	if err := h.carRepo.Update(r.Context(), car); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("car_updated",
		zap.String("car_id", car.ID.String()),
		zap.String("admin_id", caller.ID.String()),
	)
	respondJSON(w, http.StatusOK, car)
}

// DeleteCar removes a car
func (h *CarHandler) DeleteCar(w http.ResponseWriter, r *http.Request, caller models.Identity) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.carRepo.Delete(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("car_deleted",
		zap.String("car_id", id.String()),
		zap.String("admin_id", caller.ID.String()),
	)
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/benvon/drivenova/internal/apperrors"
	"github.com/benvon/drivenova/internal/database"
	"github.com/benvon/drivenova/internal/middleware"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/notify"
	"github.com/benvon/drivenova/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// BookingHandler handles car reservations
type BookingHandler struct {
	bookingRepo database.BookingRepositoryInterface
	guard       *middleware.Guard
	notifier    notify.Notifier
	logger      *zap.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingRepo database.BookingRepositoryInterface, guard *middleware.Guard, notifier notify.Notifier, logger *zap.Logger) *BookingHandler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingHandler{bookingRepo: bookingRepo, guard: guard, notifier: notifier, logger: logger}
}

// RegisterRoutes registers booking routes on the given router
// The router should already have the /api/bookings prefix
func (h *BookingHandler) RegisterRoutes(r *mux.Router) {
	r.Handle("", h.guard.Protect(h.CreateBooking)).Methods("POST")
	r.Handle("", h.guard.Protect(h.ListMyBookings)).Methods("GET")
	r.Handle("/all", h.guard.ProtectAdmin(h.ListAllBookings)).Methods("GET")
}

// BookingRequest is the body of a new booking. Dates accept RFC 3339 or YYYY-MM-DD.
type BookingRequest struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Email           string   `json:"email" validate:"required,loose_email"`
	Phone           string   `json:"phone" validate:"required,max=50"`
	CarModel        string   `json:"car_model" validate:"required,max=200"`
	PickupDate      string   `json:"pickup_date" validate:"required"`
	DropoffDate     string   `json:"dropoff_date" validate:"required"`
	PickupLocation  string   `json:"pickup_location" validate:"required,max=200"`
	DropoffLocation string   `json:"dropoff_location" validate:"required,max=200"`
	Services        []string `json:"services" validate:"max=20,dive,max=100"`
	TotalAmount     *float64 `json:"total_amount" validate:"required,gte=0"`
}

func parseBookingDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Time{}, apperrors.Validation(field + " must be a date (YYYY-MM-DD or RFC 3339)")
}

// toBooking validates req and builds the booking owned by userID
func (req *BookingRequest) toBooking(userID uuid.UUID) (*models.Booking, error) {
	req.Name = validation.SanitizeText(req.Name)
	req.Email = validation.NormalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.CarModel = validation.SanitizeText(req.CarModel)
	req.PickupLocation = validation.SanitizeText(req.PickupLocation)
	req.DropoffLocation = validation.SanitizeText(req.DropoffLocation)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	pickup, err := parseBookingDate("pickup_date", req.PickupDate)
	if err != nil {
		return nil, err
	}
	dropoff, err := parseBookingDate("dropoff_date", req.DropoffDate)
	if err != nil {
		return nil, err
	}
	if !dropoff.After(pickup) {
		return nil, apperrors.Validation("dropoff_date must be after pickup_date")
	}

	services := make([]string, 0, len(req.Services))
	for _, s := range req.Services {
		if s = validation.SanitizeText(s); s != "" {
			services = append(services, s)
		}
	}

	return &models.Booking{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		CarModel:        req.CarModel,
		PickupDate:      pickup,
		DropoffDate:     dropoff,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		Services:        services,
		TotalAmount:     *req.TotalAmount,
	}, nil
}

// CreateBooking stores a booking for the caller
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request, caller models.Identity) {
	var req BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	booking, err := req.toBooking(caller.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.bookingRepo.Create(r.Context(), booking); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	subject, body := notify.BookingMessage(booking)
	h.notifier.Notify(r.Context(), notify.KindBookingCreated, subject, body)

	respondJSON(w, http.StatusCreated, booking)
}

// ListMyBookings lists the caller's bookings
func (h *BookingHandler) ListMyBookings(w http.ResponseWriter, r *http.Request, caller models.Identity) {
	bookings, err := h.bookingRepo.ListByUser(r.Context(), caller.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, bookings)
}

// ListAllBookings lists every booking
func (h *BookingHandler) ListAllBookings(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	bookings, err := h.bookingRepo.ListAll(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, bookings)
}

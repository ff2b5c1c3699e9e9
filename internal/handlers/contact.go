package handlers

import (
	"net/http"
	"strings"

	"github.com/benvon/drivenova/internal/database"
	"github.com/benvon/drivenova/internal/models"
	"github.com/benvon/drivenova/internal/services/notify"
	"github.com/benvon/drivenova/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ContactHandler handles the public contact form
type ContactHandler struct {
	contactRepo database.ContactRepositoryInterface
	notifier    notify.Notifier
	rateLimit   func(http.Handler) http.Handler
	logger      *zap.Logger
}

// NewContactHandler creates a new contact handler. rateLimit wraps the submit
// route; nil leaves it unlimited.
func NewContactHandler(contactRepo database.ContactRepositoryInterface, notifier notify.Notifier, rateLimit func(http.Handler) http.Handler, logger *zap.Logger) *ContactHandler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if rateLimit == nil {
		rateLimit = func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactHandler{contactRepo: contactRepo, notifier: notifier, rateLimit: rateLimit, logger: logger}
}

// RegisterRoutes registers contact routes on the given router
// The router should already have the /api/contact prefix
func (h *ContactHandler) RegisterRoutes(r *mux.Router) {
	r.Handle("", h.rateLimit(http.HandlerFunc(h.Submit))).Methods("POST")
}

// ContactRequest is the body of a contact form submission
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,loose_email"`
	Phone   string `json:"phone" validate:"required,max=50"`
	Message string `json:"message" validate:"required,max=5000"`
}

// Submit stores a contact message and notifies the operators
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	req.Name = validation.SanitizeText(req.Name)
	req.Email = validation.NormalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Message = strings.TrimSpace(req.Message)
	if err := validation.Struct(req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	msg := &models.ContactMessage{
		ID:      uuid.New(),
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	}
	if err := h.contactRepo.Create(r.Context(), msg); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	subject, body := notify.ContactMessage(msg)
	h.notifier.Notify(r.Context(), notify.KindContactMessage, subject, body)

	respondJSON(w, http.StatusCreated, msg)
}

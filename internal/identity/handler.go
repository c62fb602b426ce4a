package identity

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/news-digest/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers identity routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
}

// RegisterRequest represents registration request body.
// bcrypt ignores everything past 72 bytes, so longer passwords are rejected.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest represents login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Topics       []string `json:"topics"`
	IsSubscribed bool     `json:"is_subscribed"`
	Token        string   `json:"token"`
}

func newAuthResponse(s *Session) AuthResponse {
	return AuthResponse{
		ID:           s.User.ID,
		Email:        s.User.Email,
		Topics:       s.User.Topics,
		IsSubscribed: s.User.IsSubscribed,
		Token:        s.Token,
	}
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEmailExists, Status: http.StatusBadRequest, Message: ErrEmailExists.Error()},
	{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: ErrInvalidCredentials.Error()},
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = NormalizeEmail(req.Email)

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	session, err := h.service.Register(r.Context(), RegisterInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, newAuthResponse(session))
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = NormalizeEmail(req.Email)

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	session, err := h.service.Login(r.Context(), LoginInput(req))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, newAuthResponse(session))
}

package preferences

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bissquit/news-digest/internal/digest"
	"github.com/bissquit/news-digest/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for preferences.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new preferences handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers preferences routes. All of them require an
// authenticated user.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/preferences", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/topics", h.UpdateTopics)
		r.Put("/subscribe", h.UpdateSubscription)
		r.Post("/manual-digest", h.ManualDigest)
		r.Get("/news", h.News)
	})
}

// UpdateTopicsRequest represents the topics update body.
type UpdateTopicsRequest struct {
	Topics []string `json:"topics" validate:"required,max=100"`
}

// UpdateSubscriptionRequest represents the subscription toggle body.
type UpdateSubscriptionRequest struct {
	IsSubscribed *bool `json:"is_subscribed" validate:"required"`
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusNotFound, Message: ErrUserNotFound.Error()},
	{Error: ErrNoTopics, Status: http.StatusBadRequest, Message: ErrNoTopics.Error()},
	{Error: ErrSubscriptionDisabled, Status: http.StatusBadRequest, Message: ErrSubscriptionDisabled.Error()},
	{Error: ErrTooManyTopics, Status: http.StatusBadRequest},
	{Error: ErrTopicTooLong, Status: http.StatusBadRequest},
	{Error: digest.ErrNoArticles, Status: http.StatusNotFound, Message: digest.ErrNoArticles.Error()},
}

// Get handles GET /preferences.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// UpdateTopics handles PUT /preferences/topics.
func (h *Handler) UpdateTopics(w http.ResponseWriter, r *http.Request) {
	var req UpdateTopicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.UpdateTopics(r.Context(), httputil.GetUserID(r.Context()), req.Topics)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// UpdateSubscription handles PUT /preferences/subscribe.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.SetSubscription(r.Context(), httputil.GetUserID(r.Context()), *req.IsSubscribed)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// ManualDigest handles POST /preferences/manual-digest.
func (h *Handler) ManualDigest(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.SendDigestNow(r.Context(), httputil.GetUserID(r.Context())); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Message(w, http.StatusOK, "Digest sent successfully")
}

// News handles GET /preferences/news?page=N.
func (h *Handler) News(w http.ResponseWriter, r *http.Request) {
	articles, err := h.service.News(r.Context(), httputil.GetUserID(r.Context()), parsePage(r.URL.Query().Get("page")))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, articles)
}

// parsePage returns 1 for a missing, malformed or non-positive page.
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

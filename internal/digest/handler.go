package digest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bissquit/news-digest/internal/pkg/ctxlog"
	"github.com/bissquit/news-digest/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Trigger runs the digest job once on demand.
type Trigger interface {
	Trigger(ctx context.Context) (RunStats, error)
}

// Handler exposes the manual batch trigger over HTTP.
type Handler struct {
	trigger Trigger
}

// NewHandler creates a new digest handler.
func NewHandler(trigger Trigger) *Handler {
	return &Handler{trigger: trigger}
}

// RegisterRoutes registers the cron trigger route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/cron", h.RunCron)
}

// RunCron handles GET /cron. The run continues if the caller disconnects.
// The server write timeout is lifted for this response; the run itself is
// bounded by the scheduler's run timeout.
func (h *Handler) RunCron(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		ctxlog.FromContext(ctx).Warn("cannot lift write deadline for cron trigger", "error", err)
	}

	stats, err := h.trigger.Trigger(ctx)
	if err != nil {
		ctxlog.FromContext(ctx).Error("cron trigger failed", "error", err)
		httputil.Text(w, http.StatusInternalServerError, "Cron job failed")
		return
	}

	ctxlog.FromContext(ctx).Info("cron trigger completed", "sent", stats.Sent, "failed", stats.Failed)
	httputil.Text(w, http.StatusOK, "Cron job executed successfully")
}

package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/news-digest/internal/domain"
	"github.com/bissquit/news-digest/internal/pkg/ctxlog"
)

// SubscriberRepository provides the users a batch run works on.
type SubscriberRepository interface {
	// ListDigestSubscribers returns subscribed users with at least one topic.
	ListDigestSubscribers(ctx context.Context) ([]domain.User, error)
	MarkDigestSent(ctx context.Context, userID string, sentAt time.Time) error
}

// ArticleFetcher returns the articles for a set of topics.
type ArticleFetcher interface {
	Fetch(ctx context.Context, topics []string, page int) []domain.Article
}

// DigestSender delivers a digest and reports what happened to it.
type DigestSender interface {
	Send(ctx context.Context, dg Digest) Outcome
}

// RunStats summarises one batch run.
type RunStats struct {
	Selected int
	Sent     int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Job composes fetch and dispatch for every eligible subscriber.
type Job struct {
	repo    SubscriberRepository
	fetcher ArticleFetcher
	sender  DigestSender
	now     func() time.Time
}

// NewJob creates a digest job.
func NewJob(repo SubscriberRepository, fetcher ArticleFetcher, sender DigestSender) *Job {
	return &Job{
		repo:    repo,
		fetcher: fetcher,
		sender:  sender,
		now:     time.Now,
	}
}

// Run sends one digest to every eligible subscriber, one at a time. A
// failure for one subscriber is logged and does not stop the run. The
// returned error is non-nil only if subscribers could not be listed or the
// context ended before all subscribers were processed.
func (j *Job) Run(ctx context.Context) (RunStats, error) {
	start := time.Now()
	logger := ctxlog.FromContext(ctx)

	stats, err := j.run(ctx, logger)
	stats.Duration = time.Since(start)
	recordRun(stats, err)

	if err != nil {
		logger.Error("digest run failed", "error", err, "sent", stats.Sent, "failed", stats.Failed)
		return stats, err
	}

	logger.Info("digest run completed",
		"selected", stats.Selected,
		"sent", stats.Sent,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (j *Job) run(ctx context.Context, logger *slog.Logger) (RunStats, error) {
	var stats RunStats

	users, err := j.repo.ListDigestSubscribers(ctx)
	if err != nil {
		return stats, fmt.Errorf("list subscribers: %w", err)
	}
	stats.Selected = len(users)
	logger.Info("digest run started", "subscribers", len(users))

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("digest run interrupted: %w", err)
		}

		if !user.DigestEligible() {
			stats.Skipped++
			logger.Debug("subscriber not eligible for digest", "user_id", user.ID,
				"is_subscribed", user.IsSubscribed, "topics", len(user.Topics))
			continue
		}

		userCtx := ctxlog.With(ctx, "user_id", user.ID)
		sent, err := j.processSubscriber(userCtx, user)
		switch {
		case err != nil:
			stats.Failed++
			logger.Error("digest failed for subscriber", "user_id", user.ID, "error", err)
		case sent:
			stats.Sent++
		default:
			stats.Skipped++
		}
	}

	return stats, nil
}

// processSubscriber runs the fetch and dispatch for one user. Panics are
// turned into errors so the batch continues.
func (j *Job) processSubscriber(ctx context.Context, user domain.User) (sent bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	articles := j.fetcher.Fetch(ctx, user.Topics, 1)
	if len(articles) == 0 {
		return false, nil
	}

	j.sender.Send(ctx, Digest{
		Recipient: user.Email,
		Topics:    user.Topics,
		Articles:  articles,
	})

	if err := j.repo.MarkDigestSent(ctx, user.ID, j.now()); err != nil {
		return true, fmt.Errorf("mark digest sent: %w", err)
	}
	return true, nil
}

// SendNow sends one digest to user immediately, regardless of the
// schedule. It returns ErrNoArticles when there is nothing to send.
func (j *Job) SendNow(ctx context.Context, user domain.User) (Outcome, error) {
	articles := j.fetcher.Fetch(ctx, user.Topics, 1)
	if len(articles) == 0 {
		return OutcomeSkipped, ErrNoArticles
	}

	outcome := j.sender.Send(ctx, Digest{
		Recipient: user.Email,
		Topics:    user.Topics,
		Articles:  articles,
	})

	if err := j.repo.MarkDigestSent(ctx, user.ID, j.now()); err != nil {
		return outcome, fmt.Errorf("mark digest sent: %w", err)
	}
	return outcome, nil
}

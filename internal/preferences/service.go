// Package preferences manages a subscriber's topics, subscription flag and
// on-demand digests.
package preferences

import (
	"context"
	"fmt"

	"github.com/bissquit/news-digest/internal/digest"
	"github.com/bissquit/news-digest/internal/domain"
	"github.com/bissquit/news-digest/internal/pkg/ctxlog"
)

// Repository defines data access for preferences.
type Repository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdateTopics(ctx context.Context, id string, topics []string) (*domain.User, error)
	SetSubscribed(ctx context.Context, id string, subscribed bool) (*domain.User, error)
}

// ArticleFetcher returns articles for a set of topics.
type ArticleFetcher interface {
	Fetch(ctx context.Context, topics []string, page int) []domain.Article
}

// DigestSender sends one digest to one user immediately.
type DigestSender interface {
	SendNow(ctx context.Context, user domain.User) (digest.Outcome, error)
}

// Service implements preferences business logic.
type Service struct {
	repo    Repository
	fetcher ArticleFetcher
	digests DigestSender
}

// NewService creates a new preferences service.
func NewService(repo Repository, fetcher ArticleFetcher, digests DigestSender) *Service {
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		digests: digests,
	}
}

// Get returns the user's current preferences.
func (s *Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.GetUser(ctx, userID)
}

// UpdateTopics replaces the user's topic set.
func (s *Service) UpdateTopics(ctx context.Context, userID string, topics []string) (*domain.User, error) {
	normalized, err := NormalizeTopics(topics)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.UpdateTopics(ctx, userID, normalized)
	if err != nil {
		return nil, fmt.Errorf("update topics: %w", err)
	}
	return user, nil
}

// SetSubscription turns the scheduled digest on or off.
func (s *Service) SetSubscription(ctx context.Context, userID string, subscribed bool) (*domain.User, error) {
	user, err := s.repo.SetSubscribed(ctx, userID, subscribed)
	if err != nil {
		return nil, fmt.Errorf("set subscription: %w", err)
	}

	ctxlog.FromContext(ctx).Info("subscription changed", "user_id", userID, "is_subscribed", subscribed)
	return user, nil
}

// SendDigestNow sends the user a digest outside the schedule. It returns
// digest.ErrNoArticles when nothing was found for the user's topics.
func (s *Service) SendDigestNow(ctx context.Context, userID string) (digest.Outcome, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}

	if !user.DigestEligible() {
		if !user.IsSubscribed {
			return "", ErrSubscriptionDisabled
		}
		return "", ErrNoTopics
	}

	return s.digests.SendNow(ctx, *user)
}

// News previews articles for the user's topics without sending anything.
// Pages below 1 are treated as 1.
func (s *Service) News(ctx context.Context, userID string, page int) ([]domain.Article, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	return s.fetcher.Fetch(ctx, user.Topics, page), nil
}

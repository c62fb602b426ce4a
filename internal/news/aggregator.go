// Package news resolves a subscriber's topics into article summaries, either
// from the NewsAPI search endpoint or from a deterministic mock generator.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/news-digest/internal/domain"
	"github.com/bissquit/news-digest/internal/pkg/ctxlog"
	"github.com/bissquit/news-digest/internal/pkg/secret"
)

// PageSize is the number of articles requested per page. A page holding fewer
// articles is the last one.
const PageSize = 5

const (
	defaultBaseURL  = "https://newsapi.org"
	defaultLanguage = "en"
	defaultTimeout  = 10 * time.Second
	searchWindow    = 24 * time.Hour
	removedTitle    = "[Removed]"
)

// Config holds news provider configuration.
type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// Aggregator fetches articles for topic sets. It never returns an error:
// missing credentials or a failing provider degrade to mock articles.
type Aggregator struct {
	config     Config
	httpClient *http.Client
	now        func() time.Time
}

// NewAggregator creates a new aggregator.
func NewAggregator(config Config) *Aggregator {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Language == "" {
		config.Language = defaultLanguage
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	a := &Aggregator{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		now:        time.Now,
	}

	slog.Info("news aggregator configured",
		"live", a.LiveEnabled(),
		"base_url", config.BaseURL,
		"language", config.Language,
	)
	if !a.LiveEnabled() {
		slog.Warn("news api key is missing or a placeholder, serving mock articles")
	}

	return a
}

// LiveEnabled reports whether a usable API key is configured.
func (a *Aggregator) LiveEnabled() bool {
	return secret.IsConfigured(a.config.APIKey)
}

// Fetch returns at most PageSize articles for topics. Pages start at 1;
// smaller values are treated as 1.
func (a *Aggregator) Fetch(ctx context.Context, topics []string, page int) []domain.Article {
	res := a.resolve(ctx, topics, max(page, 1))
	recordFetch(res.source)

	if res.source == sourceMock {
		ctxlog.FromContext(ctx).Debug("serving mock articles",
			"reason", res.reason,
			"topics", topics,
			"page", page,
		)
	}

	return res.articles
}

type source string

const (
	sourceNone source = "none"
	sourceLive source = "live"
	sourceMock source = "mock"
)

// result is either live articles or a mock page together with the reason
// the live provider was not used.
type result struct {
	articles []domain.Article
	source   source
	reason   string
}

// resolve is the single place that decides between live and mock articles.
func (a *Aggregator) resolve(ctx context.Context, topics []string, page int) result {
	if len(topics) == 0 {
		return result{articles: []domain.Article{}, source: sourceNone}
	}

	if !a.LiveEnabled() {
		return result{
			articles: mockArticles(topics, page),
			source:   sourceMock,
			reason:   "api key not configured",
		}
	}

	articles, err := a.search(ctx, topics, page)
	if err != nil {
		// Rejected requests (bad key, quota) log at Warn, transport failures at Info.
		level := slog.LevelInfo
		if IsAPIError(err) {
			level = slog.LevelWarn
		}
		ctxlog.FromContext(ctx).Log(ctx, level, "news search failed, falling back to mock articles",
			"error", err,
			"page", page,
		)
		return result{
			articles: mockArticles(topics, 1),
			source:   sourceMock,
			reason:   err.Error(),
		}
	}

	return result{articles: articles, source: sourceLive}
}

type searchResponse struct {
	Status       string          `json:"status"`
	Code         string          `json:"code"`
	Message      string          `json:"message"`
	TotalResults int             `json:"totalResults"`
	Articles     []searchArticle `json:"articles"`
}

type searchArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
}

// search queries the /v2/everything endpoint for the last 24 hours.
func (a *Aggregator) search(ctx context.Context, topics []string, page int) ([]domain.Article, error) {
	endpoint, err := url.JoinPath(a.config.BaseURL, "v2", "everything")
	if err != nil {
		return nil, fmt.Errorf("build search url: %w", err)
	}

	params := url.Values{}
	params.Set("q", buildQuery(topics))
	params.Set("from", a.now().UTC().Add(-searchWindow).Format("2006-01-02T15:04:05"))
	params.Set("sortBy", "popularity")
	params.Set("pageSize", strconv.Itoa(PageSize))
	params.Set("page", strconv.Itoa(page))
	params.Set("language", a.config.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", a.config.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	recordSearchDuration(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("news api returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || body.Status != "ok" {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: body.Code, Message: body.Message}
	}

	articles := make([]domain.Article, 0, len(body.Articles))
	for _, item := range body.Articles {
		title := strings.TrimSpace(item.Title)
		if title == "" || title == removedTitle || item.URL == "" {
			continue
		}
		articles = append(articles, domain.Article{
			Title:       title,
			Description: plainText(item.Description),
			URL:         item.URL,
			ImageURL:    strings.TrimSpace(item.URLToImage),
		})
		if len(articles) == PageSize {
			break
		}
	}

	return articles, nil
}

// APIError is a non-success answer from the news provider.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("news api status %d", e.StatusCode)
	}
	return fmt.Sprintf("news api status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsAPIError reports whether err came from a provider response rather than transport.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// buildQuery ORs the quoted topics: "AI" OR "Space".
func buildQuery(topics []string) string {
	quoted := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(strings.ReplaceAll(t, `"`, ""))
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

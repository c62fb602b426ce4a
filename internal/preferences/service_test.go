package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/bissquit/news-digest/internal/digest"
	"github.com/bissquit/news-digest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "3f1c6a52-8a0c-4a4e-9d55-0f9b8a3c2b11"

// mockRepository implements Repository for testing.
type mockRepository struct {
	users     map[string]*domain.User
	updateErr error
}

func newMockRepository(users ...*domain.User) *mockRepository {
	m := &mockRepository{users: make(map[string]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockRepository) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) UpdateTopics(_ context.Context, id string, topics []string) (*domain.User, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Topics = topics
	cp := *u
	return &cp, nil
}

func (m *mockRepository) SetSubscribed(_ context.Context, id string, subscribed bool) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.IsSubscribed = subscribed
	cp := *u
	return &cp, nil
}

// mockFetcher returns one article per topic.
type mockFetcher struct {
	lastPage int
}

func (m *mockFetcher) Fetch(_ context.Context, topics []string, page int) []domain.Article {
	m.lastPage = page
	out := make([]domain.Article, 0, len(topics))
	for _, t := range topics {
		out = append(out, domain.Article{Title: t + " news", URL: "#"})
	}
	return out
}

// mockDigests implements DigestSender for testing.
type mockDigests struct {
	sentTo []string
	err    error
}

func (m *mockDigests) SendNow(_ context.Context, user domain.User) (digest.Outcome, error) {
	if m.err != nil {
		return digest.OutcomeSkipped, m.err
	}
	m.sentTo = append(m.sentTo, user.Email)
	return digest.OutcomeLogged, nil
}

func newUser(topics []string, subscribed bool) *domain.User {
	return &domain.User{ID: testUserID, Email: "a@x.com", Topics: topics, IsSubscribed: subscribed}
}

func TestService_UpdateTopics(t *testing.T) {
	// Arrange
	repo := newMockRepository(newUser([]string{}, true))
	service := NewService(repo, &mockFetcher{}, &mockDigests{})

	// Act
	first, err := service.UpdateTopics(context.Background(), testUserID, []string{"AI", " ai ", "Space"})
	require.NoError(t, err)
	second, err := service.UpdateTopics(context.Background(), testUserID, []string{"AI", " ai ", "Space"})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, []string{"AI", "Space"}, first.Topics)
	assert.Equal(t, first, second)
}

func TestService_UpdateTopics_Errors(t *testing.T) {
	repo := newMockRepository(newUser(nil, true))
	service := NewService(repo, &mockFetcher{}, &mockDigests{})

	_, err := service.UpdateTopics(context.Background(), "missing", []string{"AI"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	repo.updateErr = errors.New("db down")
	_, err = service.UpdateTopics(context.Background(), testUserID, []string{"AI"})
	assert.Error(t, err)
}

func TestService_SetSubscription(t *testing.T) {
	repo := newMockRepository(newUser([]string{"AI"}, true))
	service := NewService(repo, &mockFetcher{}, &mockDigests{})

	user, err := service.SetSubscription(context.Background(), testUserID, false)

	require.NoError(t, err)
	assert.False(t, user.IsSubscribed)
	assert.Equal(t, []string{"AI"}, user.Topics)
}

func TestService_SendDigestNow(t *testing.T) {
	tests := []struct {
		name     string
		user     *domain.User
		userID   string
		sendErr  error
		wantErr  error
		wantSent bool
	}{
		{"sends", newUser([]string{"AI"}, true), testUserID, nil, nil, true},
		{"unknown user", newUser([]string{"AI"}, true), "missing", nil, ErrUserNotFound, false},
		{"unsubscribed", newUser([]string{"AI"}, false), testUserID, nil, ErrSubscriptionDisabled, false},
		{"no topics", newUser([]string{}, true), testUserID, nil, ErrNoTopics, false},
		{"unsubscribed without topics", newUser([]string{}, false), testUserID, nil, ErrSubscriptionDisabled, false},
		{"no articles", newUser([]string{"AI"}, true), testUserID, digest.ErrNoArticles, digest.ErrNoArticles, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digests := &mockDigests{err: tt.sendErr}
			service := NewService(newMockRepository(tt.user), &mockFetcher{}, digests)

			_, err := service.SendDigestNow(context.Background(), tt.userID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantSent, len(digests.sentTo) == 1)
		})
	}
}

func TestService_News(t *testing.T) {
	fetcher := &mockFetcher{}
	service := NewService(newMockRepository(newUser([]string{"AI", "Space"}, true)), fetcher, &mockDigests{})

	articles, err := service.News(context.Background(), testUserID, 0)

	require.NoError(t, err)
	assert.Len(t, articles, 2)
	assert.Equal(t, 1, fetcher.lastPage)

	_, err = service.News(context.Background(), testUserID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.lastPage)
}

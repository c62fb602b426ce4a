// Package postgres provides PostgreSQL implementation of preferences repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/news-digest/internal/domain"
	"github.com/bissquit/news-digest/internal/preferences"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements preferences.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const returningUser = `RETURNING id, email, topics, is_subscribed, last_digest_sent_at, created_at, updated_at`

// GetUser retrieves a user's preferences.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, topics, is_subscribed, last_digest_sent_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// UpdateTopics replaces the topic set.
func (r *Repository) UpdateTopics(ctx context.Context, id string, topics []string) (*domain.User, error) {
	query := `UPDATE users SET topics = $2, updated_at = NOW() WHERE id = $1 ` + returningUser
	return scanUser(r.db.QueryRow(ctx, query, id, topics))
}

// SetSubscribed sets the subscription flag.
func (r *Repository) SetSubscribed(ctx context.Context, id string, subscribed bool) (*domain.User, error) {
	query := `UPDATE users SET is_subscribed = $2, updated_at = NOW() WHERE id = $1 ` + returningUser
	return scanUser(r.db.QueryRow(ctx, query, id, subscribed))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Topics,
		&u.IsSubscribed,
		&u.LastDigestSentAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, preferences.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

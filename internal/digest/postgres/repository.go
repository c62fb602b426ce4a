// Package postgres provides the PostgreSQL subscriber source for the digest job.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/news-digest/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements digest.SubscriberRepository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListDigestSubscribers returns subscribed users with at least one topic,
// oldest accounts first.
func (r *Repository) ListDigestSubscribers(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT id, email, topics, is_subscribed, last_digest_sent_at, created_at, updated_at
		FROM users
		WHERE is_subscribed AND cardinality(topics) > 0
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list digest subscribers: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID,
			&u.Email,
			&u.Topics,
			&u.IsSubscribed,
			&u.LastDigestSentAt,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}

	return users, nil
}

// MarkDigestSent records when the last digest went out to a user.
func (r *Repository) MarkDigestSent(ctx context.Context, userID string, sentAt time.Time) error {
	query := `UPDATE users SET last_digest_sent_at = $2 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, userID, sentAt); err != nil {
		return fmt.Errorf("mark digest sent: %w", err)
	}
	return nil
}

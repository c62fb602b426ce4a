package domain

import "time"

// User is a registered subscriber together with its digest preferences.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Topics           []string   `json:"topics"`
	IsSubscribed     bool       `json:"is_subscribed"`
	LastDigestSentAt *time.Time `json:"last_digest_sent_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DigestEligible reports whether the batch digest job should pick the user up.
func (u *User) DigestEligible() bool {
	return u.IsSubscribed && len(u.Topics) > 0
}

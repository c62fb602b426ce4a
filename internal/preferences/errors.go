package preferences

import "errors"

// Preferences errors.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrNoTopics             = errors.New("no topics selected")
	ErrSubscriptionDisabled = errors.New("subscription is disabled")
	ErrTooManyTopics        = errors.New("too many topics")
	ErrTopicTooLong         = errors.New("topic is too long")
)

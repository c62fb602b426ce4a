package preferences

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Topic limits.
const (
	MaxTopics      = 20
	MaxTopicLength = 64
)

// NormalizeTopics trims topics, drops empty ones and removes
// case-insensitive duplicates, keeping the first spelling in order.
func NormalizeTopics(topics []string) ([]string, error) {
	out := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))

	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTopicLength {
			return nil, fmt.Errorf("%w: %q exceeds %d characters", ErrTopicTooLong, t, MaxTopicLength)
		}

		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}

	if len(out) > MaxTopics {
		return nil, fmt.Errorf("%w: at most %d allowed", ErrTooManyTopics, MaxTopics)
	}
	return out, nil
}

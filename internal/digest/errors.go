package digest

import "errors"

// ErrNoArticles is returned when a single-user digest finds nothing to send.
var ErrNoArticles = errors.New("no news found for your topics")

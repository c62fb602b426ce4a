package testutil

import (
	"fmt"

	"github.com/google/uuid"
)

// RandomEmail returns a unique, valid email address for test users.
func RandomEmail() string {
	return fmt.Sprintf("user-%s@example.com", uuid.NewString()[:13])
}

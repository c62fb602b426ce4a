package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_DigestEligible(t *testing.T) {
	tests := []struct {
		name string
		user User
		want bool
	}{
		{"subscribed with topics", User{IsSubscribed: true, Topics: []string{"AI"}}, true},
		{"subscribed without topics", User{IsSubscribed: true}, false},
		{"unsubscribed with topics", User{IsSubscribed: false, Topics: []string{"AI"}}, false},
		{"unsubscribed without topics", User{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DigestEligible())
		})
	}
}

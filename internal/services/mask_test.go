package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"typical address", "user@example.com", "u***r@example.com"},
		{"long local part", "alexandra@example.com", "a***a@example.com"},
		{"two char local part", "ab@example.com", "a***@example.com"},
		{"single char local part", "a@example.com", "a***@example.com"},
		{"missing at sign", "not-an-email", "***@***.***"},
		{"empty", "", "***@***.***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskEmail(tt.email))
		})
	}
}

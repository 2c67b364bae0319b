package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ten digits", "5512345678", "5512345678"},
		{"country code stripped", "+52 55 1234 5678", "5512345678"},
		{"formatting stripped", "(55) 1234-5678", "5512345678"},
		{"eleven digits keeps last ten", "15512345678", "5512345678"},
		{"short number kept as digits", "12345", "12345"},
		{"empty", "", ""},
		{"no digits", "ext. none", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	t.Parallel()
	once := NormalizePhone("+52 (55) 1234-5678")
	assert.Equal(t, once, NormalizePhone(once))
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercased", "Maria.Lopez@Example.COM", "maria.lopez@example.com"},
		{"alias stripped", "maria+leads@example.com", "maria@example.com"},
		{"alias with dots", "m.lopez+q3@example.com", "m.lopez@example.com"},
		{"whitespace trimmed", "  maria@example.com ", "maria@example.com"},
		{"no at sign passes through", "not-an-email", "not-an-email"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeEmail(tt.input))
		})
	}
}

func TestNormalizeEmailIdempotent(t *testing.T) {
	t.Parallel()
	once := NormalizeEmail("Maria+tag@Example.com")
	assert.Equal(t, once, NormalizeEmail(once))
}

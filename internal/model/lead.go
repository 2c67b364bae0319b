package model

import "strings"

// Lead is one record from the input lead list. It is immutable once
// loaded; all derived state lives in the per-lead Context.
type Lead struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Product    string `json:"product"`
	Amount     string `json:"amount"`
	Stage      string `json:"stage"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

// NormalizePhone reduces a phone number to its last 10 digits, matching
// the join key used by the upstream warehouse queries. Inputs shorter
// than 10 digits are returned as their digit sequence. Idempotent.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// NormalizeEmail lower-cases an email address and strips a single
// "+"-alias segment from the local part (user+tag@host -> user@host).
// Addresses without an alias are returned lower-cased. Idempotent.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	local, domain := email[:at], email[at:]
	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}
	return local + domain
}

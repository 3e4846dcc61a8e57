package services

import "strings"

// MaskEmail renders an address for client display, e.g. "j***e@example.com".
// The raw destination is never returned to the caller of initiate-login.
func MaskEmail(email string) string {
	if email == "" || !strings.Contains(email, "@") {
		return "***@***.***"
	}

	parts := strings.SplitN(email, "@", 2)
	local, domain := parts[0], parts[1]

	switch {
	case len(local) == 0:
		local = "***"
	case len(local) <= 2:
		local = string(local[0]) + "***"
	default:
		local = string(local[0]) + "***" + string(local[len(local)-1])
	}

	return local + "@" + domain
}

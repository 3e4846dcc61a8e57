package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 14 // OWASP 2026 recommendation
	MinPasswordLen = 8
	MaxPasswordLen = 128

	// OtpDigits is the length of a delivered login code. Codes are zero
	// padded, so "004217" is valid.
	OtpDigits = 6

	randomPasswordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%^&*"
)

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	// Generic message to callers; never echo specific requirements back
	return "invalid password"
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"123123":       true,
	"passw0rd":     true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"starwars":     true,
	"football":     true,
	"trustno1":     true,
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the default password policy.
func ValidatePassword(password string) error {
	return ValidatePasswordWithMinLen(password, MinPasswordLen)
}

// ValidatePasswordWithMinLen enforces the password policy with a configured
// minimum length. Character-class requirements are fixed; only the length is
// an operator knob.
func ValidatePasswordWithMinLen(password string, minLen int) error {
	if minLen <= 0 {
		minLen = MinPasswordLen
	}

	errors := make([]string, 0)

	if len(password) < minLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", minLen))
	}
	if len(password) > MaxPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		errors = append(errors, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errors = append(errors, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errors = append(errors, "must contain at least one digit")
	}

	if commonPasswords[strings.ToLower(password)] {
		errors = append(errors, "is too common, please choose a more unique password")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}

// GenerateLoginCode returns a uniformly random numeric code of OtpDigits
// digits with leading zeros preserved.
func GenerateLoginCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < OtpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate login code: %w", err)
	}

	return fmt.Sprintf("%0*d", OtpDigits, n), nil
}

// GenerateRandomPassword returns a random password used when resetting or
// provisioning an account. The caller always sets the forced-change flag
// alongside it.
func GenerateRandomPassword(length int) (string, error) {
	if length < MinPasswordLen {
		length = 12
	}

	alphabet := randomPasswordAlphabet
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}

	// Guarantee the generated value passes the default policy.
	out[0] = 'A' + byte(out[0]%26)
	out[1] = 'a' + byte(out[1]%26)
	out[2] = '2' + byte(out[2]%8)

	return string(out), nil
}

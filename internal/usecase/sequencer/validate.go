package sequencer

import (
	"regexp"
	"strings"

	"arbiter-launcher/internal/domain"
)

var (
	keyPattern     = regexp.MustCompile(`(?i)^[0-9a-f]{64}$`)
	addressPattern = regexp.MustCompile(`(?i)^0x[0-9a-f]{40}$`)
)

// ValidateKey reports whether s is a 64-character hex private key.
func ValidateKey(s string) bool {
	return keyPattern.MatchString(s)
}

// ValidateAddress reports whether s is "0x" followed by 40 hex characters.
func ValidateAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ValidatePassword reports whether s has any non-whitespace content.
func ValidatePassword(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ValidationError describes a rejected wizard input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is match domain.ErrValidationFailed.
func (e *ValidationError) Unwrap() error { return domain.ErrValidationFailed }

// Field names used in ValidationError.
const (
	FieldBtcPrivateKey  = "btcPrivateKey"
	FieldEscPrivateKey  = "escPrivateKey"
	FieldPassword       = "password"
	FieldArbiterAddress = "escArbiterAddress"
)

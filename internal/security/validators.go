package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input length constraints
const (
	MaxDisplayNameLength = 32
	MaxSessionIDLength   = 64
	MinSessionIDLength   = 4
)

var (
	// Display names keep only word characters, whitespace and hyphens;
	// everything else is stripped rather than rejected, so pasted names
	// with stray punctuation still work.
	displayNameStripRegex = regexp.MustCompile(`[^\w\s-]`)
	// Session IDs are opaque client-generated tokens
	sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// SanitizeDisplayName normalizes an untrusted display name: strips disallowed
// characters, collapses surrounding whitespace, and truncates to
// MaxDisplayNameLength runes. Sanitization happens once, at the registry
// boundary; downstream code trusts the stored name.
func SanitizeDisplayName(name string) (string, error) {
	cleaned := displayNameStripRegex.ReplaceAllString(name, "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "", fmt.Errorf("display name is empty after sanitization")
	}

	runes := []rune(cleaned)
	if len(runes) > MaxDisplayNameLength {
		cleaned = strings.TrimSpace(string(runes[:MaxDisplayNameLength]))
	}
	if cleaned == "" {
		return "", fmt.Errorf("display name is empty after sanitization")
	}

	return cleaned, nil
}

// ValidateSessionID checks that a client-supplied identity token is a
// reasonable opaque id before it touches shared state.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if len(id) < MinSessionIDLength {
		return fmt.Errorf("session id too short (min %d characters)", MinSessionIDLength)
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("session id too long (max %d characters)", MaxSessionIDLength)
	}
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("session id contains invalid characters")
	}
	return nil
}

// ValidateRoomID checks that a room id has the shape the coordinator
// generates. Room ids are UUIDs, so anything else can be rejected without a
// room table lookup.
func ValidateRoomID(id string) error {
	if id == "" {
		return fmt.Errorf("room id cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("malformed room id")
	}
	return nil
}

// SanitizeErrorMessage removes internal details from error messages before
// they are sent to a client.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	sensitivePatterns := []string{
		"goroutine",
		"panic",
		"runtime error",
		"address",
		"connection reset",
	}

	for _, pattern := range sensitivePatterns {
		if strings.Contains(errStr, pattern) {
			return "An error occurred while processing your request"
		}
	}

	return err.Error()
}

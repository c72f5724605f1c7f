package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jrong1271/scrum-planning-poker/internal/security"
)

func TestSanitizeDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		// Valid cases
		{"plain name", "Alice", "Alice", false},
		{"name with space", "Alice Smith", "Alice Smith", false},
		{"name with hyphen", "Jean-Luc", "Jean-Luc", false},
		{"name with underscore", "alice_smith", "alice_smith", false},
		{"name with digits", "Player 2", "Player 2", false},
		{"surrounding whitespace trimmed", "  Alice  ", "Alice", false},
		{"max length kept", strings.Repeat("a", 32), strings.Repeat("a", 32), false},

		// Stripped rather than rejected
		{"punctuation stripped", "Alice!", "Alice", false},
		{"angle brackets stripped", "<b>Alice</b>", "bAliceb", false},
		{"script tag neutered", "Alice<script>alert(1)</script>", "Alicescriptalert1script", false},
		{"emoji stripped", "Alice 🚀", "Alice", false},
		{"quotes stripped", `"Alice"`, "Alice", false},
		{"over max truncated", strings.Repeat("a", 40), strings.Repeat("a", 32), false},

		// Nothing left
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"symbols only", "<>!@#$%", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := security.SanitizeDisplayName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple id", "session-abc123", false},
		{"uuid shaped", "550e8400-e29b-41d4-a716-446655440000", false},
		{"with underscore", "user_1234", false},
		{"minimum length", "abcd", false},
		{"maximum length", strings.Repeat("a", 64), false},

		{"empty", "", true},
		{"too short", "abc", true},
		{"too long", strings.Repeat("a", 65), true},
		{"with space", "session id", true},
		{"sql injection", "' OR '1'='1", true},
		{"xss attempt", "<script>alert(1)</script>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := security.ValidateSessionID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRoomID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", false},
		{"empty", "", true},
		{"not a uuid", "room-42", true},
		{"sequential guess", "1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := security.ValidateRoomID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsValidMessageType(t *testing.T) {
	for _, valid := range []string{"create-room", "join-room", "leave-room", "select-card", "restart-game"} {
		assert.True(t, security.IsValidMessageType(valid), valid)
	}
	for _, invalid := range []string{"", "room-data", "drop-tables", "CREATE-ROOM"} {
		assert.False(t, security.IsValidMessageType(invalid), invalid)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Equal(t, "", security.SanitizeErrorMessage(nil))
	})

	t.Run("plain error passes through", func(t *testing.T) {
		err := errors.New("room not found")
		assert.Equal(t, "room not found", security.SanitizeErrorMessage(err))
	})

	t.Run("internal details are masked", func(t *testing.T) {
		err := errors.New("runtime error: index out of range")
		assert.Equal(t, "An error occurred while processing your request", security.SanitizeErrorMessage(err))
	})
}

package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Registration Tests
// =============================================================================

func TestRegistration_Normalize(t *testing.T) {
	reg := Registration{Username: "  alice ", Email: " Alice@Example.COM ", Password: " pw with spaces "}.Normalize()

	assert.Equal(t, "alice", reg.Username)
	assert.Equal(t, "alice@example.com", reg.Email)
	assert.Equal(t, " pw with spaces ", reg.Password)
}

func TestRegistration_Validate(t *testing.T) {
	valid := Registration{Username: "alice", Email: "alice@example.com", Password: "correct-horse"}

	tests := []struct {
		name   string
		mutate func(r *Registration)
		want   error
	}{
		{"valid", func(r *Registration) {}, nil},
		{"missing username", func(r *Registration) { r.Username = "" }, ErrUsernameRequired},
		{"long username", func(r *Registration) { r.Username = strings.Repeat("a", 65) }, ErrUsernameTooLong},
		{"missing email", func(r *Registration) { r.Email = "" }, ErrEmailRequired},
		{"invalid email", func(r *Registration) { r.Email = "not-an-email" }, ErrEmailInvalid},
		{"display name email", func(r *Registration) { r.Email = "Alice <alice@example.com>" }, ErrEmailInvalid},
		{"missing password", func(r *Registration) { r.Password = "" }, ErrPasswordRequired},
		{"short password", func(r *Registration) { r.Password = "short" }, ErrPasswordTooShort},
		{"long password", func(r *Registration) { r.Password = strings.Repeat("p", 73) }, ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := valid
			tt.mutate(&reg)
			err := reg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewUser(t *testing.T) {
	user, err := NewUser(Registration{Username: "alice", Email: "ALICE@example.com", Password: "correct-horse"}, "hash")
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.ReferenceID, "user_"))
	assert.False(t, user.CreatedAt.IsZero())
}

func TestNewUser_Invalid(t *testing.T) {
	_, err := NewUser(Registration{Username: "alice", Email: "alice@example.com"}, "hash")
	assert.ErrorIs(t, err, ErrPasswordRequired)
}

// =============================================================================
// Session Tests
// =============================================================================

func TestNewSession(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("abc", User{ID: 7, Username: "alice"}, time.Hour, now)

	assert.Equal(t, "abc", s.TokenHash)
	assert.Equal(t, int64(7), s.UserID)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)
	assert.False(t, s.IsExpired(now))
	assert.False(t, s.IsExpired(now.Add(59*time.Minute)))
	assert.True(t, s.IsExpired(now.Add(time.Hour)))
}

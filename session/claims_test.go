package session_test

import (
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-lms-client/session"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("unknown-to-client"))
	require.NoError(t, err)
	return s
}

// TestRoleFromToken tests role extraction from unverified access tokens
func TestRoleFromToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  session.Role
	}{
		{"role claim", signedToken(t, jwtlib.MapClaims{"sub": "u1", "role": "teacher"}), session.RoleTeacher},
		{"roles claim", signedToken(t, jwtlib.MapClaims{"roles": []string{"admin", "editor"}}), session.RoleAdmin},
		{"no role", signedToken(t, jwtlib.MapClaims{"sub": "u1"}), ""},
		{"opaque token", "not-a-jwt", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, session.RoleFromToken(tt.token))
		})
	}
}

package session

import (
	"time"

	"github.com/jrsteele09/go-lms-client/internal/utils"
)

// Role is the role the backend assigned to the logged-in user. The set varies by
// deployment; the constants below are the common ones.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleEditor  Role = "editor"
)

// Session is the authentication state of this client. It is written as one document
// so token material is always replaced atomically.
type Session struct {
	AccessToken     string        `json:"accessToken,omitempty"`
	RefreshToken    string        `json:"refreshToken,omitempty"`
	IssuedAt        time.Time     `json:"issuedAt,omitzero"` // Server clock at issue
	ClockOffset     time.Duration `json:"clockOffset"`       // Local clock minus server clock at issue
	AccessLifetime  time.Duration `json:"accessLifetime"`    // Lifetime of AccessToken
	RefreshLifetime time.Duration `json:"refreshLifetime"`   // Lifetime of RefreshToken
	Role            Role          `json:"role,omitempty"`    // Assigned role
	Lang            string        `json:"lang,omitempty"`    // Preferred language
	LoggedIn        bool          `json:"loggedIn"`          // Set on login, cleared with the session
}

// Complete reports whether every field needed to decide on a token is present.
func (s *Session) Complete() bool {
	return s != nil &&
		s.AccessToken != "" &&
		s.RefreshToken != "" &&
		!s.IssuedAt.IsZero() &&
		s.AccessLifetime > 0 &&
		s.RefreshLifetime > 0
}

// Elapsed is the time since issue measured on the server's clock, using the offset
// recorded when the tokens were issued.
func (s *Session) Elapsed(localNow time.Time) time.Duration {
	return localNow.Add(-s.ClockOffset).Sub(s.IssuedAt)
}

// AccessExpiry is the local time at which the access token expires.
func (s *Session) AccessExpiry() time.Time {
	return s.IssuedAt.Add(s.ClockOffset).Add(s.AccessLifetime)
}

// TokenGrant is the token payload returned by the login and refresh endpoints.
// Pointer fields distinguish "missing" from zero.
type TokenGrant struct {
	Token                 *string `json:"token,omitempty"`                 // New access token
	RefreshToken          *string `json:"refreshToken,omitempty"`          // New refresh token
	ExpiresIn             *int64  `json:"expiresIn,omitempty"`             // Access token lifetime in seconds
	RefreshTokenExpiresIn *int64  `json:"refreshTokenExpiresIn,omitempty"` // Refresh token lifetime in seconds
	ServerTime            *int64  `json:"serverTime,omitempty"`            // Server clock at issue, epoch milliseconds
	Role                  Role    `json:"role,omitempty"`
	Lang                  string  `json:"lang,omitempty"`
}

// Complete reports whether the grant carries all token material.
func (g *TokenGrant) Complete() bool {
	return g != nil &&
		utils.Value(g.Token) != "" &&
		utils.Value(g.RefreshToken) != "" &&
		utils.Value(g.ExpiresIn) > 0 &&
		utils.Value(g.RefreshTokenExpiresIn) > 0 &&
		utils.Value(g.ServerTime) > 0
}

// newSession builds a session from a complete grant. Role and language are taken from
// prev when it has them, so a refresh keeps what login established.
func newSession(g *TokenGrant, prev *Session, localNow time.Time) *Session {
	issuedAt := time.UnixMilli(utils.Value(g.ServerTime))
	s := &Session{
		AccessToken:     utils.Value(g.Token),
		RefreshToken:    utils.Value(g.RefreshToken),
		IssuedAt:        issuedAt,
		ClockOffset:     localNow.Sub(issuedAt),
		AccessLifetime:  time.Duration(utils.Value(g.ExpiresIn)) * time.Second,
		RefreshLifetime: time.Duration(utils.Value(g.RefreshTokenExpiresIn)) * time.Second,
		Role:            g.Role,
		Lang:            g.Lang,
		LoggedIn:        true,
	}
	if prev != nil {
		if prev.Role != "" {
			s.Role = prev.Role
		}
		if prev.Lang != "" {
			s.Lang = prev.Lang
		}
	}
	if s.Role == "" {
		s.Role = RoleFromToken(s.AccessToken)
	}
	return s
}

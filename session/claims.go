package session

import (
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-lms-client/internal/utils"
)

// RoleFromToken reads the role claim of an access token without verifying it. The
// client has no verification key; the claim is only used to fill in a missing role.
// Tokens that are not JWTs yield "".
func RoleFromToken(rawToken string) Role {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return ""
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return ""
	}

	if role, ok := claims["role"].(string); ok {
		return Role(role)
	}
	if roles, ok := claims["roles"].([]any); ok {
		if names := utils.ToStringSlice(roles); len(names) > 0 {
			return Role(names[0])
		}
	}
	return ""
}

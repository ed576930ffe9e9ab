package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated user behind a request.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Equal reports whether both identities name the same user. Two nil identities are equal.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == nil && other == nil
	}
	return i.ID == other.ID && i.Email == other.Email
}

// DisplayName falls back to the email when no name was recorded at sign-up.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	return i.Email
}

// UserMetadata carries profile fields set at sign-up.
type UserMetadata struct {
	Name string `json:"name,omitempty"`
}

// AccessTokenClaims mirrors the access tokens issued by the auth provider.
type AccessTokenClaims struct {
	Email        string       `json:"email"`
	Role         string       `json:"role,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) Identity() *Identity {
	return &Identity{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.UserMetadata.Name,
	}
}

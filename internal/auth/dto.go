package auth

import (
	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	pkgauth "github.com/angelmondragon/storefront-backend/pkg/auth"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest captures the sign-up payload. The provider enforces its own
// password policy on top of the minimum length.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresIn    int               `json:"expires_in"`
	User         *pkgauth.Identity `json:"user"`
	// CartLoad is the outcome of loading the user's saved cart into the session.
	CartLoad cartsync.Outcome `json:"cart_load"`
}

type RegisterResponse struct {
	UserID              string `json:"user_id"`
	Email               string `json:"email"`
	ConfirmationPending bool   `json:"confirmation_pending"`
}

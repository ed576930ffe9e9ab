package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/cartsync"
	pkgauth "github.com/angelmondragon/storefront-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gotrue"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, sess IdentitySwitcher, req LoginRequest) (*LoginResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Logout(ctx context.Context, sess IdentitySwitcher, accessToken string) error
}

// IdentitySwitcher is the session surface touched by sign-in and sign-out.
type IdentitySwitcher interface {
	SetIdentity(ctx context.Context, identity *pkgauth.Identity) cartsync.LoadResult
}

type provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*gotrue.Session, error)
	SignUp(ctx context.Context, email, password string) (*gotrue.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

type service struct {
	provider provider
	logg     *logger.Logger
}

func NewService(p provider, logg *logger.Logger) (Service, error) {
	if p == nil {
		return nil, fmt.Errorf("auth provider is required")
	}
	return &service{provider: p, logg: logg}, nil
}

func (s *service) Login(ctx context.Context, sess IdentitySwitcher, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	signedIn, err := s.provider.SignInWithPassword(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	identity := &pkgauth.Identity{
		ID:    signedIn.User.ID,
		Email: signedIn.User.Email,
		Name:  signedIn.User.UserMetadata.Name,
	}
	if identity.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "auth provider returned no user")
	}

	ctx = s.logg.WithUserID(ctx, identity.ID)
	load := sess.SetIdentity(ctx, identity)
	s.logg.Info(ctx, "auth.login")

	return &LoginResponse{
		AccessToken:  signedIn.AccessToken,
		RefreshToken: signedIn.RefreshToken,
		ExpiresIn:    signedIn.ExpiresIn,
		User:         identity,
		CartLoad:     load.Outcome,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.provider.SignUp(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	return &RegisterResponse{
		UserID:              user.ID,
		Email:               user.Email,
		ConfirmationPending: user.ConfirmedAt == nil,
	}, nil
}

// Logout always clears the session identity and its local cart. A provider
// failure is logged and not surfaced.
func (s *service) Logout(ctx context.Context, sess IdentitySwitcher, accessToken string) error {
	if strings.TrimSpace(accessToken) != "" {
		if err := s.provider.SignOut(ctx, accessToken); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth.provider_sign_out_failed")
		}
	}
	sess.SetIdentity(ctx, nil)
	s.logg.Info(ctx, "auth.logout")
	return nil
}

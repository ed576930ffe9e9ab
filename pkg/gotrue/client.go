package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

var (
	errURLRequired     = errors.New("auth provider url is required")
	errAnonKeyRequired = errors.New("auth provider anon key is required")
)

// Client calls the hosted GoTrue auth endpoints under <url>/auth/v1.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(providerURL, anonKey string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(providerURL), "/")
	if trimmedURL == "" {
		return nil, errURLRequired
	}
	trimmedKey := strings.TrimSpace(anonKey)
	if trimmedKey == "" {
		return nil, errAnonKeyRequired
	}
	client := &Client{
		baseURL:    trimmedURL + "/auth/v1",
		anonKey:    trimmedKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name string `json:"name"`
	} `json:"user_metadata"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Session is the token pair returned after a password sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInWithPassword exchanges credentials for a session. Rejected credentials
// are CodeUnauthorized.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	status, err := c.post(ctx, "/token?grant_type=password", "", credentials{Email: email, Password: password}, &sess)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid credentials")
		}
		return nil, err
	}
	return &sess, nil
}

// SignUp registers a user. With email confirmation on, the returned user has
// no ConfirmedAt yet.
func (c *Client) SignUp(ctx context.Context, email, password string) (*User, error) {
	var user User
	status, err := c.post(ctx, "/signup", "", credentials{Email: email, Password: password}, &user)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "sign up rejected")
		}
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "access token is required")
	}
	_, err := c.post(ctx, "/logout", accessToken, nil, nil)
	return err
}

func (c *Client) post(ctx context.Context, path, bearer string, body, out any) (int, error) {
	if c == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "auth provider client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal auth request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build auth request")
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute auth request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "auth request failed")
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode auth response")
	}
	return resp.StatusCode, nil
}

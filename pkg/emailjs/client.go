package emailjs

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

const (
	defaultBaseURL              = "https://api.emailjs.com/api/v1.0"
	responseBodyReadLimit int64 = 1024
)

var (
	errServiceIDRequired = errors.New("emailjs service id is required")
	errPublicKeyRequired = errors.New("emailjs public key is required")
)

// Client sends template emails through the EmailJS REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceID  string
	publicKey  string
	privateKey string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithPrivateKey sets the access token required when the account enforces
// server-side calls.
func WithPrivateKey(key string) Option {
	return func(c *Client) { c.privateKey = strings.TrimSpace(key) }
}

func NewClient(serviceID, publicKey string, opts ...Option) (*Client, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return nil, errServiceIDRequired
	}
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return nil, errPublicKeyRequired
	}
	client := &Client{
		serviceID:  serviceID,
		publicKey:  publicKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send renders templateID with vars and delivers it.
func (c *Client) Send(ctx context.Context, templateID string, vars map[string]string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "emailjs client not configured")
	}
	if strings.TrimSpace(templateID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "template id is required")
	}

	payload, err := json.Marshal(sendRequest{
		ServiceID:      c.serviceID,
		TemplateID:     templateID,
		UserID:         c.publicKey,
		AccessToken:    c.privateKey,
		TemplateParams: vars,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal email request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.baseURL, "/")+"/email/send", bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build email request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute email request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "email request failed")
	}
	return nil
}

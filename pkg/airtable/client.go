package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.airtable.com/v0"
	responseBodyReadLimit int64 = 1024
)

var (
	errAPIKeyRequired = errors.New("airtable api key is required")
	errBaseIDRequired = errors.New("airtable base id is required")
)

// Client talks to the Airtable REST API for a single base.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	baseID     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Airtable API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func NewClient(apiKey, baseID string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}
	trimmedBase := strings.TrimSpace(baseID)
	if trimmedBase == "" {
		return nil, errBaseIDRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseID:     trimmedBase,
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

// Record is one Airtable row. Fields stay raw so callers decode their own shape.
type Record struct {
	ID          string                     `json:"id"`
	CreatedTime string                     `json:"createdTime,omitempty"`
	Fields      map[string]json.RawMessage `json:"fields"`
}

// DecodeFields unmarshals the record fields into dst.
func (r Record) DecodeFields(dst any) error {
	raw, err := json.Marshal(r.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// ListOptions narrows a list call.
type ListOptions struct {
	FilterByFormula string
	PageSize        int
}

// EqualsFormula builds {field}='value' with single quotes escaped.
func EqualsFormula(field, value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return fmt.Sprintf("{%s}='%s'", field, escaped)
}

// List returns every record of table matching opts, following pagination offsets.
func (c *Client) List(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "airtable client not configured")
	}

	records := []Record{}
	offset := ""
	for {
		query := url.Values{}
		if opts.FilterByFormula != "" {
			query.Set("filterByFormula", opts.FilterByFormula)
		}
		if opts.PageSize > 0 {
			query.Set("pageSize", fmt.Sprintf("%d", opts.PageSize))
		}
		if offset != "" {
			query.Set("offset", offset)
		}

		var page struct {
			Records []Record `json:"records"`
			Offset  string   `json:"offset"`
		}
		if err := c.do(ctx, http.MethodGet, c.tableURL(table, "", query), nil, &page, "list records"); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// Get fetches one record. A missing record is a CodeNotFound error.
func (c *Client) Get(ctx context.Context, table, recordID string) (*Record, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "airtable client not configured")
	}
	trimmed := strings.TrimSpace(recordID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "record id is required")
	}

	var rec Record
	if err := c.do(ctx, http.MethodGet, c.tableURL(table, trimmed, nil), nil, &rec, "get record"); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts one record and returns it as stored.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "airtable client not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"records": []map[string]any{{"fields": fields}},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal create request")
	}

	var resp struct {
		Records []Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodPost, c.tableURL(table, "", nil), payload, &resp, "create record"); err != nil {
		return nil, err
	}
	if len(resp.Records) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "create record returned no records")
	}
	return &resp.Records[0], nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any, op string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+op+" request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "airtable record not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op+" request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	return nil
}

func (c *Client) tableURL(table, recordID string, query url.Values) string {
	target := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.baseID), url.PathEscape(table))
	if recordID != "" {
		target += "/" + url.PathEscape(recordID)
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

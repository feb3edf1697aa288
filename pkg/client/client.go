package client

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
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	// ErrUnavailable is returned when the server could not take the append
	// lock in time. The request can be retried.
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledgerd returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the package's sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable
	}
	return false
}

// Client talks to one ledgerd instance.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an actor token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient = &http.Client{Timeout: d}
		return nil
	}
}

// New creates a Client for the ledgerd instance at base.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithBearerToken(token),
//	)
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Health calls GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Overview calls GET /api/v1/ledger.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Audit calls GET /api/v1/ledger/audit. Integrity failures are reported in
// the result, not as an error.
func (c *Client) Audit(ctx context.Context) (*AuditResult, error) {
	var out AuditResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/audit", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordAudit calls POST /api/v1/admin/audit, which audits the chain and
// records the outcome as a ledger entry. Requires an admin token.
func (c *Client) RecordAudit(ctx context.Context) (*AuditResult, error) {
	var out AuditResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/admin/audit", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEntry calls GET /api/v1/ledger/entries/:id/verify. An unknown id
// yields ErrNotFound.
func (c *Client) VerifyEntry(ctx context.Context, id string) (*SpotCheck, error) {
	var out SpotCheck
	path := "/api/v1/ledger/entries/" + url.PathEscape(id) + "/verify"
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Append calls POST /api/v1/ledger/entries.
func (c *Client) Append(ctx context.Context, req EntryRequest) (*Receipt, error) {
	var out Receipt
	if err := c.call(ctx, http.MethodPost, "/api/v1/ledger/entries", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Declare calls POST /api/v1/declarations.
func (c *Client) Declare(ctx context.Context, req DeclareRequest) (*Declaration, error) {
	var out Declaration
	if err := c.call(ctx, http.MethodPost, "/api/v1/declarations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Link calls POST /api/v1/declarations/:id/link. pending is true when the
// content was written but the declaration's status update is still
// outstanding; the server's reconcile pass completes it.
func (c *Client) Link(ctx context.Context, confidenceID string, req EntryRequest) (res *LinkResult, pending bool, err error) {
	var out struct {
		Result  *LinkResult `json:"result"`
		Pending bool        `json:"pending"`
	}
	path := "/api/v1/declarations/" + url.PathEscape(confidenceID) + "/link"
	if err := c.call(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, false, err
	}
	return out.Result, out.Pending, nil
}

// FlagViolation calls POST /api/v1/declarations/:id/violations.
func (c *Client) FlagViolation(ctx context.Context, confidenceID string, req ViolationRequest) (*ViolationResult, error) {
	var out ViolationResult
	path := "/api/v1/declarations/" + url.PathEscape(confidenceID) + "/violations"
	if err := c.call(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditDeclarations calls GET /api/v1/declarations/audit.
func (c *Client) AuditDeclarations(ctx context.Context) (*DeclarationAudit, error) {
	var out DeclarationAudit
	if err := c.call(ctx, http.MethodGet, "/api/v1/declarations/audit", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Migrate calls POST /api/v1/admin/migrate. Requires an admin token.
func (c *Client) Migrate(ctx context.Context) (*MigrationResult, error) {
	var out MigrationResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/admin/migrate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reconcile calls POST /api/v1/admin/reconcile and returns how many
// declarations were moved to LINKED. Requires an admin token.
func (c *Client) Reconcile(ctx context.Context) (int, error) {
	var out struct {
		Reconciled int `json:"reconciled"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/admin/reconcile", nil, &out); err != nil {
		return 0, err
	}
	return out.Reconciled, nil
}

// call sends in as JSON (when non-nil) and decodes a 2xx body into out
// (when non-nil). Non-2xx responses become *APIError.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

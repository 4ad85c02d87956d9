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
	ErrInvalid        = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrNothingToAudit = errors.New("nothing to audit")
	ErrUnavailable    = errors.New("service unavailable")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto a package sentinel.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrInvalid
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrNothingToAudit
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return ErrUnavailable
	}
	return nil
}

// Client talks to a posd server.
type Client struct {
	base       string
	httpClient *http.Client
	operator   string
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

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// WithOperator sends X-Operator-ID on every request. The server rate limits
// per operator when it is present.
func WithOperator(id string) Option {
	return func(c *Client) error {
		c.operator = id
		return nil
	}
}

// New creates a Client for the server at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
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

// RecordSale records a sale via POST /api/v1/sales.
func (c *Client) RecordSale(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	var out SaleResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/sales", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSales returns every recorded sale.
func (c *Client) ListSales(ctx context.Context) ([]Sale, error) {
	var wrapper struct {
		Sales []Sale `json:"sales"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/sales", nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Sales, nil
}

// GetSale fetches a single sale.
func (c *Client) GetSale(ctx context.Context, id string) (*Sale, error) {
	var wrapper struct {
		Sale Sale `json:"sale"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/sales/"+url.PathEscape(id), nil, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Sale, nil
}

// VerifySale asks the server to recompute and corroborate a sale's fingerprint.
func (c *Client) VerifySale(ctx context.Context, id string) (*Verification, error) {
	var out Verification
	if err := c.call(ctx, http.MethodGet, "/api/v1/sales/"+url.PathEscape(id)+"/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnchorSale resubmits an unanchored sale's fingerprint.
func (c *Client) AnchorSale(ctx context.Context, id string) (*Sale, error) {
	var wrapper struct {
		Sale Sale `json:"sale"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/sales/"+url.PathEscape(id)+"/anchor", nil, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Sale, nil
}

// RunAudit commits to all sales recorded so far.
func (c *Client) RunAudit(ctx context.Context) (*AuditResult, error) {
	var out AuditResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/audits", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAudits returns every audit in order.
func (c *Client) ListAudits(ctx context.Context) ([]Audit, error) {
	var wrapper struct {
		Audits []Audit `json:"audits"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/audits", nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Audits, nil
}

// GetAudit fetches one audit by id.
func (c *Client) GetAudit(ctx context.Context, id string) (*Audit, error) {
	var wrapper struct {
		Audit Audit `json:"audit"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/audits/"+url.PathEscape(id), nil, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Audit, nil
}

// AnchorAudit resubmits an unanchored audit root.
func (c *Client) AnchorAudit(ctx context.Context, id string) (*Audit, error) {
	var wrapper struct {
		Audit Audit `json:"audit"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/audits/"+url.PathEscape(id)+"/anchor", nil, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Audit, nil
}

// Prove fetches the inclusion proof of saleID in auditID.
func (c *Client) Prove(ctx context.Context, auditID, saleID string) (*Proof, error) {
	path := "/api/v1/audits/" + url.PathEscape(auditID) + "/proof/" + url.PathEscape(saleID)
	var out Proof
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report fetches the audit report over the current ledger.
func (c *Client) Report(ctx context.Context) (*Report, error) {
	var out Report
	if err := c.call(ctx, http.MethodGet, "/api/v1/report", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLedger asks the server to walk its hash chain.
func (c *Client) VerifyLedger(ctx context.Context) (*LedgerStatus, error) {
	var out LedgerStatus
	if err := c.call(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call encodes reqBody, performs the request and decodes into respBody.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the operator header if set.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.operator != "" {
		req.Header.Set("X-Operator-ID", c.operator)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: HTTP request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return body, nil
}

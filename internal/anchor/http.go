package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPClient talks to an anchoring gateway that fronts the external ledger:
//
//	POST /v1/anchors        {"kind":"fingerprint","digest":"0x…"} → {"ref":"0x…"}
//	GET  /v1/anchors/{ref}  → {"ref":"0x…","digest":"0x…"}
//
// Each call is bounded by the client timeout and throttled client-side.
// Failed calls are not retried; the caller decides when to resubmit.
type HTTPClient struct {
	base       string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithRateLimit caps submissions at rps requests per second. Zero disables it.
func WithRateLimit(rps float64) HTTPOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithAPIKey sends key as a bearer token on every request.
func WithAPIKey(key string) HTTPOption {
	return func(c *HTTPClient) { c.apiKey = key }
}

// NewHTTPClient creates a client for the gateway at base.
func NewHTTPClient(base string, logger *zap.Logger, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type submitRequest struct {
	Kind   Kind   `json:"kind"`
	Digest string `json:"digest"`
}

type anchorResponse struct {
	Ref    string `json:"ref"`
	Digest string `json:"digest,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SubmitFingerprint implements Client.
func (c *HTTPClient) SubmitFingerprint(ctx context.Context, digest string) (string, error) {
	return c.submit(ctx, KindFingerprint, digest)
}

// SubmitRoot implements Client.
func (c *HTTPClient) SubmitRoot(ctx context.Context, digest string) (string, error) {
	return c.submit(ctx, KindRoot, digest)
}

func (c *HTTPClient) submit(ctx context.Context, kind Kind, digest string) (string, error) {
	body, err := json.Marshal(submitRequest{Kind: kind, Digest: Pad32(digest)})
	if err != nil {
		return "", fmt.Errorf("marshal anchor request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/anchors", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build anchor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Ref == "" {
		return "", fmt.Errorf("%w: gateway returned no reference", ErrUnavailable)
	}
	c.logger.Debug("digest anchored",
		zap.String("kind", string(kind)),
		zap.String("digest", digest),
		zap.String("ref", resp.Ref),
	)
	return resp.Ref, nil
}

// ReadBack implements Client.
func (c *HTTPClient) ReadBack(ctx context.Context, ref string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/anchors/"+url.PathEscape(ref), nil)
	if err != nil {
		return "", fmt.Errorf("build read-back request: %w", err)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Digest == "" {
		return "", fmt.Errorf("%w: gateway returned no digest for %s", ErrUnavailable, ref)
	}
	return Unpad32(resp.Digest), nil
}

func (c *HTTPClient) do(ctx context.Context, req *http.Request) (*anchorResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRef, req.URL.Path)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: gateway returned HTTP %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out anchorResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return &out, nil
}

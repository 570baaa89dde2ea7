// Package rpc implements the JSON-RPC 2.0 HTTP client used to reach the
// remote services. Encoding is an implementation detail of this package;
// callers work with typed requests and responses plus typed errors.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
	"github.com/louisbranch/depths.social/internal/platform/timeouts"
)

const maxResponseBodyBytes int64 = 1 << 20 // 1 MiB

const idempotencyKeyHeader = "X-Depths-Idempotency-Key"

// TokenSource supplies the bearer token attached to every request. The
// session manager owns the token; the transport only forwards it.
type TokenSource func() string

// Client posts JSON-RPC 2.0 requests to a single service endpoint.
type Client struct {
	name     string
	endpoint string
	http     *http.Client
	token    TokenSource
	limiter  *rate.Limiter
}

// Options configures optional client behavior.
type Options struct {
	// HTTPClient overrides the transport; nil uses a client bound to the
	// default RPC timeout.
	HTTPClient *http.Client
	// Token supplies the bearer token; nil sends unauthenticated requests.
	Token TokenSource
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
}

// NewClient builds a client for one service endpoint.
func NewClient(name, endpoint string, opts Options) (*Client, error) {
	name = strings.TrimSpace(name)
	endpoint = strings.TrimSpace(endpoint)
	if name == "" {
		return nil, fmt.Errorf("service name is required")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%s endpoint is required", name)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.RPCCall}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		name:     name,
		endpoint: endpoint,
		http:     httpClient,
		token:    opts.Token,
		limiter:  limiter,
	}, nil
}

type wireRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type wireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

// Call issues a read-only request and decodes the result into out when
// out is non-nil.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	return c.do(ctx, method, params, out, "")
}

// Mutate issues a state-changing request. Every mutation carries a fresh
// idempotency key so a retried delivery cannot apply twice server-side.
func (c *Client) Mutate(ctx context.Context, method string, params any, out any) error {
	return c.do(ctx, method, params, out, uuid.NewString())
}

func (c *Client) do(ctx context.Context, method string, params any, out any, idempotencyKey string) error {
	if c == nil {
		return apperrors.E(apperrors.KindUnavailable, "rpc client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return fmt.Errorf("rpc method is required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return mapTransportError(c.name, err)
		}
	}

	body, err := json.Marshal(wireRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if token := strings.TrimSpace(c.token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return mapTransportError(c.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.E(apperrors.KindUnavailable,
			fmt.Sprintf("%s service returned status %d", c.name, resp.StatusCode))
	}

	var decoded wireResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return apperrors.E(apperrors.KindUnavailable,
			fmt.Sprintf("%s service returned a malformed response", c.name))
	}
	if decoded.Error != nil {
		return mapWireError(c.name, method, decoded.Error)
	}

	if out == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return apperrors.E(apperrors.KindUnavailable,
			fmt.Sprintf("%s service returned an empty result for %s", c.name, method))
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return apperrors.E(apperrors.KindUnavailable,
			fmt.Sprintf("%s service returned an undecodable result for %s", c.name, method))
	}
	return nil
}

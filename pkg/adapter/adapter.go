// Package adapter is the HTTP client the pipeline agents use to reach the
// action gateway. It normalizes legacy domain aliases, bounds every call
// with a timeout, and classifies transport failures so callers can
// distinguish an unreachable gateway from a slow or broken one.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finguard-labs/finguard/pkg/capability"
	"github.com/finguard-labs/finguard/pkg/gateway"
)

// DefaultTimeout bounds a single gateway call.
const DefaultTimeout = 30 * time.Second

var tracer = otel.Tracer("finguard/adapter")

// FailureKind classifies a failed invocation at the transport level.
type FailureKind string

const (
	FailureConnection FailureKind = "connection_refused"
	FailureTimeout    FailureKind = "timeout"
	FailureOther      FailureKind = "other"
)

// InvokeResult is the adapter's uniform answer. Success is false both for
// transport failures (Failure set) and for handler errors reported inside
// the gateway envelope (Failure empty, Error from the envelope).
type InvokeResult struct {
	Success bool           `json:"success"`
	Result  map[string]any `json:"result,omitempty"`
	Status  string         `json:"status,omitempty"`
	Error   string         `json:"error,omitempty"`
	Failure FailureKind    `json:"failure,omitempty"`
}

// Client talks to one gateway instance.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient builds an adapter for the gateway at baseURL.
func NewClient(baseURL string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger.With("component", "gateway_adapter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeDomain maps legacy aliases onto gateway domains: lowercase with
// any "-mcp"/"_mcp" suffix stripped, so "fraud-mcp" and "FRAUD_MCP" both
// resolve to "fraud".
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimSuffix(d, "-mcp")
	d = strings.TrimSuffix(d, "_mcp")
	return d
}

// Invoke calls domain/action on the gateway. The intent token itself never
// crosses the wire; only its presence is flagged in request metadata.
func (c *Client) Invoke(ctx context.Context, domain, action string, payload map[string]any, token *capability.IntentToken) InvokeResult {
	normalized := NormalizeDomain(domain)

	ctx, span := tracer.Start(ctx, "adapter.invoke",
		trace.WithAttributes(
			attribute.String("gateway.domain", normalized),
			attribute.String("gateway.action", action),
		))
	defer span.End()

	req := gateway.Request{
		Domain:  normalized,
		Action:  action,
		Payload: payload,
		Metadata: map[string]string{
			"requested_by":     "orchestrator",
			"has_intent_token": strconv.FormatBool(token != nil),
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return InvokeResult{Error: fmt.Sprintf("encode request: %v", err), Failure: FailureOther}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return InvokeResult{Error: fmt.Sprintf("build request: %v", err), Failure: FailureOther}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		kind := classify(err)
		c.logger.Warn("gateway call failed", "domain", normalized, "action", action, "failure", string(kind), "error", err)
		return InvokeResult{Error: err.Error(), Failure: kind}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("gateway rejected call", "domain", normalized, "action", action, "status", resp.StatusCode)
		return InvokeResult{
			Error:   fmt.Sprintf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
			Failure: FailureOther,
		}
	}

	var envelope gateway.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return InvokeResult{Error: fmt.Sprintf("decode response: %v", err), Failure: FailureOther}
	}

	if envelope.Status != gateway.StatusSuccess {
		return InvokeResult{
			Status: envelope.Status,
			Result: envelope.Result,
			Error:  envelope.Error,
		}
	}

	return InvokeResult{
		Success: true,
		Status:  envelope.Status,
		Result:  envelope.Result,
	}
}

// Health probes the gateway's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("adapter: build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("adapter: gateway unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("adapter: gateway unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// classify buckets a transport error. Timeouts are checked before connection
// errors because a timed-out dial reports both.
func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return FailureConnection
	}
	return FailureOther
}

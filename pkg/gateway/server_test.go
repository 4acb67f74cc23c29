package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...ServerOption) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(testRegistry(t), discardLogger(), opts...).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postInvoke(t *testing.T, url string, req Request) (*http.Response, Response) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var envelope Response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	}
	return resp, envelope
}

func TestInvokeEndpointSuccess(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := postInvoke(t, srv.URL+"/invoke", Request{
		Domain: "fraud",
		Action: "detect_deepfakes",
		Payload: map[string]any{
			"input":      "Regular bank transfer",
			"media_type": "text",
		},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StatusSuccess, envelope.Status)
	assert.Equal(t, "fraud", envelope.Domain)
	assert.Equal(t, false, envelope.Result["deepfake_detected"])
}

func TestInvokeEndpointUnknownDomain(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postInvoke(t, srv.URL+"/invoke", Request{Domain: "ghost", Action: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestInvokeEndpointMissingFields(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postInvoke(t, srv.URL+"/invoke", Request{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvokeEndpointMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/invoke", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvokeEndpointHandlerErrorEnvelope(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("fraud", "broken", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return nil, assert.AnError
	}))
	srv := httptest.NewServer(NewServer(registry, discardLogger()).Routes())
	defer srv.Close()

	resp, envelope := postInvoke(t, srv.URL+"/invoke", Request{Domain: "fraud", Action: "broken"})

	assert.Equal(t, http.StatusOK, resp.StatusCode, "handler failures ride inside a success response")
	assert.Equal(t, StatusError, envelope.Status)
	assert.NotEmpty(t, envelope.Error)
}

func TestPerDomainInvokeOverridesBodyDomain(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := postInvoke(t, srv.URL+"/fraud/invoke", Request{
		Domain: "risk",
		Action: "detect_deepfakes",
		Payload: map[string]any{
			"input": "hello",
		},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fraud", envelope.Domain)
	assert.Equal(t, StatusSuccess, envelope.Status)
}

func TestHealthAndInfoEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Len(t, health["domains"], 4)

	resp, err = http.Get(srv.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	catalog, ok := info["domains"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, catalog, "fraud")
	assert.Contains(t, catalog, "memory")
}

func TestRateLimitReturns429(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(1, 1))

	req := Request{
		Domain:  "fraud",
		Action:  "detect_deepfakes",
		Payload: map[string]any{"input": "hello"},
	}
	resp, _ := postInvoke(t, srv.URL+"/invoke", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postInvoke(t, srv.URL+"/invoke", req)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestSerializationGuardFallback(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("memory", "bad_payload", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return map[string]any{"loop": make(chan int)}, nil
	}))
	srv := httptest.NewServer(NewServer(registry, discardLogger()).Routes())
	defer srv.Close()

	resp, envelope := postInvoke(t, srv.URL+"/invoke", Request{Domain: "memory", Action: "bad_payload"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "serialization_error", envelope.Result["status"])
}

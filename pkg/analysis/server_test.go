package analysis_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finguard-labs/finguard/pkg/analysis"
	"github.com/finguard-labs/finguard/pkg/api"
	"github.com/finguard-labs/finguard/pkg/contracts"
	"github.com/finguard-labs/finguard/pkg/orchestrator"
)

// stubPipeline records requests and answers from a canned table.
type stubPipeline struct {
	requests []orchestrator.Request
}

func (s *stubPipeline) Process(ctx context.Context, req orchestrator.Request) (*contracts.FinalReport, error) {
	s.requests = append(s.requests, req)
	if req.Input == "" {
		return nil, fmt.Errorf("%w: empty input", orchestrator.ErrInvalidInput)
	}
	if req.Input == "boom" {
		return nil, fmt.Errorf("gateway unreachable")
	}
	return &contracts.FinalReport{
		SessionID:     "SESSION_TEST",
		FinalDecision: contracts.FinalSafeApproved,
	}, nil
}

func newAnalysisServer(t *testing.T) (*stubPipeline, *httptest.Server) {
	t.Helper()
	pipeline := &stubPipeline{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(analysis.NewServer(pipeline, logger).Routes())
	t.Cleanup(srv.Close)
	return pipeline, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAnalyzeText(t *testing.T) {
	pipeline, srv := newAnalysisServer(t)

	resp := postJSON(t, srv.URL+"/analyze/text", analysis.TextAnalysisRequest{
		TextContent: "Regular bank transfer",
		Mode:        "ASK",
		Metadata:    map[string]string{"channel": "mobile"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report contracts.FinalReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, contracts.FinalSafeApproved, report.FinalDecision)

	require.Len(t, pipeline.requests, 1)
	got := pipeline.requests[0]
	assert.Equal(t, "Regular bank transfer", got.Input)
	assert.Equal(t, "text", got.MediaType)
	assert.Equal(t, "ASK", got.Mode)
	assert.Equal(t, "mobile", got.Metadata["channel"])
}

func TestAnalyzeTextDefaultsToCommandMode(t *testing.T) {
	pipeline, srv := newAnalysisServer(t)

	resp := postJSON(t, srv.URL+"/analyze/text", analysis.TextAnalysisRequest{TextContent: "hello"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, pipeline.requests, 1)
	assert.Equal(t, "COMMAND", pipeline.requests[0].Mode)
}

func TestAnalyzeTextInvalidInput(t *testing.T) {
	_, srv := newAnalysisServer(t)

	resp := postJSON(t, srv.URL+"/analyze/text", analysis.TextAnalysisRequest{TextContent: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestAnalyzeTextMalformedBody(t *testing.T) {
	_, srv := newAnalysisServer(t)

	resp, err := http.Post(srv.URL+"/analyze/text", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeTextPipelineFailure(t *testing.T) {
	_, srv := newAnalysisServer(t)

	resp := postJSON(t, srv.URL+"/analyze/text", analysis.TextAnalysisRequest{TextContent: "boom"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var problem api.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.NotContains(t, problem.Detail, "gateway unreachable")
}

func TestAnalyzeBatch(t *testing.T) {
	pipeline, srv := newAnalysisServer(t)

	resp := postJSON(t, srv.URL+"/analyze/batch", analysis.BatchAnalysisRequest{
		Items: []analysis.TextAnalysisRequest{
			{TextContent: "first"},
			{TextContent: ""},
			{TextContent: "third"},
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var batch analysis.BatchAnalysisResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	assert.Equal(t, 3, batch.Total)
	require.Len(t, batch.Results, 3)

	assert.NotNil(t, batch.Results[0].Report)
	assert.Empty(t, batch.Results[0].Error)

	// Item failures land in the row, not the response status.
	assert.Nil(t, batch.Results[1].Report)
	assert.Contains(t, batch.Results[1].Error, "empty input")

	assert.NotNil(t, batch.Results[2].Report)
	assert.Len(t, pipeline.requests, 3)
}

func TestAnalyzeBatchEmpty(t *testing.T) {
	_, srv := newAnalysisServer(t)

	resp := postJSON(t, srv.URL+"/analyze/batch", analysis.BatchAnalysisRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalysisHealth(t *testing.T) {
	_, srv := newAnalysisServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "FinGuard Analysis API", body["service"])
}

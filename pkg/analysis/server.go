// Package analysis exposes the screening pipeline over HTTP: single and
// batch text analysis plus a health probe, with RFC 7807 error responses.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/finguard-labs/finguard/pkg/api"
	"github.com/finguard-labs/finguard/pkg/contracts"
	"github.com/finguard-labs/finguard/pkg/orchestrator"
)

const (
	serviceName    = "FinGuard Analysis API"
	serviceVersion = "1.0.0"

	// maxBatchSize bounds one batch request; larger batches belong in a queue.
	maxBatchSize = 50
)

// Pipeline is the screening entry point the API fronts.
type Pipeline interface {
	Process(ctx context.Context, req orchestrator.Request) (*contracts.FinalReport, error)
}

// Server exposes the screening pipeline over HTTP.
type Server struct {
	pipeline Pipeline
	logger   *slog.Logger
	clock    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the server's time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

// NewServer wires the pipeline behind the public endpoints.
func NewServer(pipeline Pipeline, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		pipeline: pipeline,
		logger:   logger.With("component", "analysis_api"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TextAnalysisRequest is the body of POST /analyze/text and each batch item.
type TextAnalysisRequest struct {
	TextContent string            `json:"text_content"`
	Mode        string            `json:"mode,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// BatchAnalysisRequest is the body of POST /analyze/batch.
type BatchAnalysisRequest struct {
	Items []TextAnalysisRequest `json:"items"`
}

// BatchResult pairs one batch item with its outcome. Exactly one of Report
// and Error is set.
type BatchResult struct {
	Index  int                    `json:"index"`
	Report *contracts.FinalReport `json:"report,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// BatchAnalysisResponse is the body returned by POST /analyze/batch.
type BatchAnalysisResponse struct {
	Results []BatchResult `json:"results"`
	Total   int           `json:"total"`
}

// Routes returns the analysis service mux with CORS applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze/text", s.analyzeText)
	mux.HandleFunc("POST /analyze/batch", s.analyzeBatch)
	mux.HandleFunc("GET /health", s.health)
	return api.CORS(mux)
}

func (s *Server) analyzeText(w http.ResponseWriter, r *http.Request) {
	var req TextAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	report, err := s.process(r.Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidInput) {
			api.WriteBadRequest(w, err.Error())
			return
		}
		api.WriteInternal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		api.WriteBadRequest(w, "batch requires at least one item")
		return
	}
	if len(req.Items) > maxBatchSize {
		api.WriteBadRequest(w, "batch size exceeds limit")
		return
	}

	// Items run sequentially: every screening shares the gateway, and a
	// partial batch result is more useful than an aborted one.
	results := make([]BatchResult, 0, len(req.Items))
	for i, item := range req.Items {
		result := BatchResult{Index: i}
		report, err := s.process(r.Context(), item)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Report = report
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, BatchAnalysisResponse{Results: results, Total: len(results)})
}

func (s *Server) process(ctx context.Context, req TextAnalysisRequest) (*contracts.FinalReport, error) {
	mode := req.Mode
	if mode == "" {
		mode = string(contracts.ModeCommand)
	}
	return s.pipeline.Process(ctx, orchestrator.Request{
		Input:     req.TextContent,
		MediaType: string(contracts.MediaText),
		Mode:      mode,
		Metadata:  req.Metadata,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": s.clock().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

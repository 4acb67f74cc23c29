package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/finguard-labs/finguard/pkg/api"
)

const serviceName = "FinGuard Action Gateway"

// ServiceVersion is reported by /health and /info.
const ServiceVersion = "1.0.0"

var tracer = otel.Tracer("finguard/gateway")

// Server exposes the registry over HTTP. Handler failures are reported
// inside a 200 envelope with status "error"; only protocol problems map to
// HTTP error codes.
type Server struct {
	registry *Registry
	logger   *slog.Logger
	limiter  *rate.Limiter
	clock    func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRateLimit bounds invoke throughput; burst requests beyond the limit
// receive 429 with Retry-After.
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(s *Server) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithServerClock overrides the envelope timestamp source.
func WithServerClock(clock func() time.Time) ServerOption {
	return func(s *Server) { s.clock = clock }
}

// NewServer builds a gateway server over a registry.
func NewServer(registry *Registry, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		logger:   logger.With("component", "gateway_server"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the gateway's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoke", s.handleInvoke)
	mux.HandleFunc("POST /{domain}/invoke", s.handleDomainInvoke)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /info", s.handleInfo)
	return mux
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	s.invoke(w, r, req)
}

// handleDomainInvoke serves the per-domain endpoints. The path segment
// overrides whatever domain the body names.
func (s *Server) handleDomainInvoke(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	req.Domain = r.PathValue("domain")
	s.invoke(w, r, req)
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request, req Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		api.WriteTooManyRequests(w, 1)
		return
	}
	if req.Domain == "" || req.Action == "" {
		api.WriteBadRequest(w, "domain and action are required")
		return
	}

	ctx, span := tracer.Start(r.Context(), "gateway.invoke",
		trace.WithAttributes(
			attribute.String("gateway.domain", req.Domain),
			attribute.String("gateway.action", req.Action),
		))
	defer span.End()

	s.logger.Info("invoking action", "domain", req.Domain, "action", req.Action)

	result, err := s.registry.Invoke(ctx, req.Domain, req.Action, req.Payload)
	if err != nil {
		if errors.Is(err, ErrUnknownDomain) || errors.Is(err, ErrUnknownAction) {
			api.WriteBadRequest(w, err.Error())
			return
		}
		s.logger.Warn("action failed", "domain", req.Domain, "action", req.Action, "error", err)
		s.writeEnvelope(w, Response{
			Status:    StatusError,
			Domain:    req.Domain,
			Action:    req.Action,
			Error:     err.Error(),
			Timestamp: s.clock().UTC(),
		})
		return
	}

	s.writeEnvelope(w, Response{
		Status:    StatusSuccess,
		Domain:    req.Domain,
		Action:    req.Action,
		Result:    result,
		Timestamp: s.clock().UTC(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   serviceName,
		"version":   ServiceVersion,
		"timestamp": s.clock().UTC().Format(time.RFC3339),
		"domains":   s.registry.Domains(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": ServiceVersion,
		"status":  "operational",
		"domains": s.registry.Catalog(),
	})
}

// writeEnvelope serializes the envelope, replacing a non-serializable result
// with a structured fallback so the caller always receives valid JSON.
func (s *Server) writeEnvelope(w http.ResponseWriter, resp Response) {
	if resp.Result != nil {
		if _, err := json.Marshal(resp.Result); err != nil {
			s.logger.Error("result not serializable", "domain", resp.Domain, "action", resp.Action, "error", err)
			resp.Result = map[string]any{
				"error":  "Non-serializable data in response",
				"status": "serialization_error",
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

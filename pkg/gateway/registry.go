// Package gateway hosts the action registry and HTTP service the pipeline
// agents invoke through the adapter. Every action lives under a domain
// (fraud, risk, compliance, memory), carries an optional JSON Schema for its
// payload, and returns a uniform response envelope.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is the body of an /invoke call.
type Request struct {
	Domain   string            `json:"domain"`
	Action   string            `json:"action"`
	Payload  map[string]any    `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Response is the uniform envelope every invocation returns. Handler
// failures ride inside a success HTTP response with Status set to "error";
// only protocol-level problems (unknown route, bad request) become HTTP
// errors.
type Response struct {
	Status    string         `json:"status"`
	Domain    string         `json:"domain"`
	Action    string         `json:"action"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler executes one action against a validated payload.
type Handler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Routing errors.
var (
	ErrUnknownDomain = errors.New("gateway: unknown domain")
	ErrUnknownAction = errors.New("gateway: unknown action")
)

type registration struct {
	handler Handler
	schema  *jsonschema.Schema
}

// Registry maps domain/action pairs to handlers. Registration happens at
// construction time; lookups afterwards are read-only, so no locking.
type Registry struct {
	domains map[string]map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{domains: make(map[string]map[string]registration)}
}

// Register adds a handler without payload validation.
func (r *Registry) Register(domain, action string, h Handler) error {
	return r.register(domain, action, h, nil)
}

// RegisterWithSchema adds a handler whose payload is validated against the
// given JSON Schema document before dispatch. The schema is compiled here,
// so a malformed schema fails at startup rather than at invoke time.
func (r *Registry) RegisterWithSchema(domain, action, schema string, h Handler) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://finguard.schemas.local/gateway/%s/%s.schema.json", domain, action)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return fmt.Errorf("gateway: schema load for %s/%s: %w", domain, action, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("gateway: schema compile for %s/%s: %w", domain, action, err)
	}
	return r.register(domain, action, h, compiled)
}

func (r *Registry) register(domain, action string, h Handler, schema *jsonschema.Schema) error {
	if h == nil {
		return fmt.Errorf("gateway: nil handler for %s/%s", domain, action)
	}
	actions, ok := r.domains[domain]
	if !ok {
		actions = make(map[string]registration)
		r.domains[domain] = actions
	}
	if _, dup := actions[action]; dup {
		return fmt.Errorf("gateway: duplicate registration for %s/%s", domain, action)
	}
	actions[action] = registration{handler: h, schema: schema}
	return nil
}

// Invoke routes a request to its handler. Unknown routes return
// ErrUnknownDomain or ErrUnknownAction; payload schema violations and
// handler failures are reported as plain errors for the server to wrap in an
// error envelope.
func (r *Registry) Invoke(ctx context.Context, domain, action string, payload map[string]any) (map[string]any, error) {
	actions, ok := r.domains[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	reg, ok := actions[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownAction, domain, action)
	}

	if reg.schema != nil {
		if payload == nil {
			payload = map[string]any{}
		}
		if err := reg.schema.Validate(normalizeForSchema(payload)); err != nil {
			return nil, fmt.Errorf("gateway: payload rejected for %s/%s: %w", domain, action, err)
		}
	}

	return reg.handler(ctx, payload)
}

// Domains lists registered domains in sorted order.
func (r *Registry) Domains() []string {
	out := make([]string, 0, len(r.domains))
	for d := range r.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Actions lists the registered actions of a domain in sorted order.
func (r *Registry) Actions(domain string) []string {
	actions, ok := r.domains[domain]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(actions))
	for a := range actions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Catalog returns every domain with its action list, for the /info endpoint.
func (r *Registry) Catalog() map[string][]string {
	out := make(map[string][]string, len(r.domains))
	for d := range r.domains {
		out[d] = r.Actions(d)
	}
	return out
}

// normalizeForSchema converts payload values the schema validator cannot
// inspect (typed numbers from Go callers rather than decoded JSON) into their
// JSON-equivalent forms.
func normalizeForSchema(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeForSchema(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeForSchema(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// Package session holds the per-run execution context shared by the pipeline
// agents: the session identity, the tamper-evident audit trail, blocked
// actions, absorbed errors, and the per-agent report slots.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finguard-labs/finguard/pkg/canonical"
	"github.com/finguard-labs/finguard/pkg/contracts"
)

// ExecutionContext is safe for concurrent use. The audit trail is append-only
// and hash-chained: every entry carries the hash of its predecessor, computed
// over the JCS canonical form of the entry fields, so any mutation,
// insertion, or reordering after the fact breaks VerifyTrail.
type ExecutionContext struct {
	mu sync.Mutex

	sessionID string
	mode      contracts.ExecutionMode
	mediaType contracts.MediaType
	metadata  map[string]string
	clock     func() time.Time
	startedAt time.Time

	trail          []contracts.AuditEntry
	blockedActions []contracts.BlockedAction
	errs           []contracts.ErrorEntry
	reports        contracts.AgentReports
}

// Option configures an ExecutionContext.
type Option func(*ExecutionContext)

// WithClock overrides the context's time source.
func WithClock(clock func() time.Time) Option {
	return func(c *ExecutionContext) { c.clock = clock }
}

// New creates a session context with a fresh session id.
func New(mode contracts.ExecutionMode, mediaType contracts.MediaType, metadata map[string]string, opts ...Option) *ExecutionContext {
	c := &ExecutionContext{
		mode:      mode,
		mediaType: mediaType,
		metadata:  metadata,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.clock().UTC()
	c.sessionID = fmt.Sprintf("SESSION_%s_%s",
		c.startedAt.Format("20060102150405"),
		uuid.NewString()[:8])
	return c
}

// SessionID returns the session identifier.
func (c *ExecutionContext) SessionID() string { return c.sessionID }

// Mode returns the execution mode the session was started with.
func (c *ExecutionContext) Mode() contracts.ExecutionMode { return c.mode }

// MediaType returns the media type under analysis.
func (c *ExecutionContext) MediaType() contracts.MediaType { return c.mediaType }

// StartedAt returns the session start time.
func (c *ExecutionContext) StartedAt() time.Time { return c.startedAt }

// Metadata returns a copy of the session metadata.
func (c *ExecutionContext) Metadata() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// LogAction appends a hash-chained entry to the audit trail. Timestamps are
// forced non-decreasing so the trail stays replayable even with a coarse
// clock.
func (c *ExecutionContext) LogAction(agent, action, status string, details map[string]any) (contracts.AuditEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock().UTC()
	prevHash := ""
	if n := len(c.trail); n > 0 {
		prev := c.trail[n-1]
		prevHash = prev.Hash
		if now.Before(prev.Timestamp) {
			now = prev.Timestamp
		}
	}

	entry := contracts.AuditEntry{
		Timestamp:    now,
		Agent:        agent,
		Action:       action,
		Status:       status,
		Details:      details,
		PreviousHash: prevHash,
	}
	hash, err := entryHash(entry)
	if err != nil {
		return contracts.AuditEntry{}, fmt.Errorf("session: hash audit entry: %w", err)
	}
	entry.Hash = hash

	c.trail = append(c.trail, entry)
	return entry, nil
}

// LogBlockedAction records a denied action attempt.
func (c *ExecutionContext) LogBlockedAction(agent, action, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockedActions = append(c.blockedActions, contracts.BlockedAction{
		Timestamp: c.clock().UTC(),
		Agent:     agent,
		Action:    action,
		Reason:    reason,
	})
}

// LogError records a stage failure the pipeline absorbed.
func (c *ExecutionContext) LogError(agent, errorType, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, contracts.ErrorEntry{
		Timestamp:    c.clock().UTC(),
		Agent:        agent,
		ErrorType:    errorType,
		ErrorMessage: message,
	})
}

// SetFraudReport stores the fraud stage report. The first write wins.
func (c *ExecutionContext) SetFraudReport(r *contracts.FraudReport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reports.Fraud != nil {
		return false
	}
	c.reports.Fraud = r
	return true
}

// SetRiskReport stores the risk stage report. The first write wins.
func (c *ExecutionContext) SetRiskReport(r *contracts.RiskReport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reports.Risk != nil {
		return false
	}
	c.reports.Risk = r
	return true
}

// SetComplianceReport stores the compliance stage report. The first write wins.
func (c *ExecutionContext) SetComplianceReport(r *contracts.ComplianceReport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reports.Compliance != nil {
		return false
	}
	c.reports.Compliance = r
	return true
}

// SetMemoryReport stores the finalization report. The first write wins.
func (c *ExecutionContext) SetMemoryReport(r *contracts.MemoryReport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reports.Memory != nil {
		return false
	}
	c.reports.Memory = r
	return true
}

// Reports returns the per-agent report slots.
func (c *ExecutionContext) Reports() contracts.AgentReports {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reports
}

// Trail returns a copy of the audit trail.
func (c *ExecutionContext) Trail() []contracts.AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]contracts.AuditEntry, len(c.trail))
	copy(out, c.trail)
	return out
}

// BlockedActions returns a copy of the blocked action list.
func (c *ExecutionContext) BlockedActions() []contracts.BlockedAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]contracts.BlockedAction, len(c.blockedActions))
	copy(out, c.blockedActions)
	return out
}

// Errors returns a copy of the absorbed error list.
func (c *ExecutionContext) Errors() []contracts.ErrorEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]contracts.ErrorEntry, len(c.errs))
	copy(out, c.errs)
	return out
}

// VerifyTrail recomputes every entry hash and checks the chain links.
func (c *ExecutionContext) VerifyTrail() error {
	return VerifyTrail(c.Trail())
}

// VerifyTrail checks the integrity of a captured audit trail.
func VerifyTrail(trail []contracts.AuditEntry) error {
	for i, entry := range trail {
		if i == 0 {
			if entry.PreviousHash != "" {
				return fmt.Errorf("first entry has non-empty previous hash")
			}
		} else if entry.PreviousHash != trail[i-1].Hash {
			return fmt.Errorf("chain broken at index %d: previous hash mismatch", i)
		}

		computed, err := entryHash(entry)
		if err != nil {
			return fmt.Errorf("recompute hash at index %d: %w", i, err)
		}
		if computed != entry.Hash {
			return fmt.Errorf("integrity failure at index %d: entry content does not match its hash", i)
		}
	}
	return nil
}

func entryHash(e contracts.AuditEntry) (string, error) {
	return canonical.Hash(map[string]any{
		"timestamp":     e.Timestamp.Format(time.RFC3339Nano),
		"agent":         e.Agent,
		"action":        e.Action,
		"status":        e.Status,
		"details":       e.Details,
		"previous_hash": e.PreviousHash,
	})
}

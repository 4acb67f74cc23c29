// Package agent implements the four pipeline agents. Every agent follows the
// same protocol before acting: capture a plan with the capability authority,
// request an intent token scoped to that plan, then invoke gateway actions
// under the token. Escalations in ASK mode pause for a human answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finguard-labs/finguard/pkg/adapter"
	"github.com/finguard-labs/finguard/pkg/capability"
	"github.com/finguard-labs/finguard/pkg/session"
)

// DefaultConfirmTimeout bounds how long an ASK-mode prompt may stall a
// session.
const DefaultConfirmTimeout = 60 * time.Second

// ConfirmFunc answers an escalation prompt. Implementations block until the
// user decides or ctx is done.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Deps carries the collaborators shared by all agents.
type Deps struct {
	Authority capability.Authority
	Gateway   *adapter.Client
	Logger    *slog.Logger

	// Confirm answers ASK-mode prompts. Nil approves everything, which is
	// what COMMAND mode relies on.
	Confirm        ConfirmFunc
	ConfirmTimeout time.Duration

	Clock func() time.Time
}

func (d *Deps) clock() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

func (d *Deps) confirmTimeout() time.Duration {
	if d.ConfirmTimeout > 0 {
		return d.ConfirmTimeout
	}
	return DefaultConfirmTimeout
}

// Base provides the protocol primitives the concrete agents share.
type Base struct {
	id     string
	name   string
	deps   Deps
	logger *slog.Logger
}

func newBase(id, name string, deps Deps) Base {
	return Base{
		id:     id,
		name:   name,
		deps:   deps,
		logger: deps.Logger.With("component", id),
	}
}

// ID returns the agent's policy identity.
func (b *Base) ID() string { return b.id }

// Name returns the agent's display name used in audit entries.
func (b *Base) Name() string { return b.name }

// capturePlan records intent with the authority.
func (b *Base) capturePlan(ctx context.Context, goal string, steps []capability.PlanStep) (*capability.PlanCapture, error) {
	plan, err := b.deps.Authority.CapturePlan(ctx, b.id, goal, steps, nil)
	if err != nil {
		return nil, fmt.Errorf("capture plan: %w", err)
	}
	return plan, nil
}

// requestToken exchanges a captured plan for a scoped intent token.
func (b *Base) requestToken(ctx context.Context, plan *capability.PlanCapture) (*capability.IntentToken, error) {
	token, err := b.deps.Authority.IssueToken(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	return token, nil
}

// invokeAction calls a gateway action under the token and records the
// outcome in the audit trail. A token that does not cover the action is
// recorded as a blocked action and never reaches the gateway.
func (b *Base) invokeAction(ctx context.Context, ec *session.ExecutionContext, token *capability.IntentToken, domain, action, auditAction string, payload map[string]any, details func(result map[string]any) map[string]any) (map[string]any, error) {
	normalized := adapter.NormalizeDomain(domain)
	if token == nil || !token.Covers(normalized, action) {
		ec.LogBlockedAction(b.name, action, "intent token does not cover "+normalized+"/"+action)
		return nil, fmt.Errorf("action %s/%s not covered by intent token", normalized, action)
	}

	res := b.deps.Gateway.Invoke(ctx, domain, action, payload, token)
	if !res.Success {
		if _, err := ec.LogAction(b.name, auditAction, "FAILED", map[string]any{"error": res.Error}); err != nil {
			b.logger.Error("audit log append failed", "error", err)
		}
		if res.Failure != "" {
			return nil, fmt.Errorf("invoke %s/%s: %s failure: %s", normalized, action, res.Failure, res.Error)
		}
		return nil, fmt.Errorf("invoke %s/%s: %s", normalized, action, res.Error)
	}

	var detailMap map[string]any
	if details != nil {
		detailMap = details(res.Result)
	}
	if _, err := ec.LogAction(b.name, auditAction, "EXECUTED", detailMap); err != nil {
		b.logger.Error("audit log append failed", "error", err)
	}
	return res.Result, nil
}

// delegateTo hands part of the token's scope to another agent and records
// the grant. A refused delegation is logged and returned to the caller.
func (b *Base) delegateTo(ctx context.Context, ec *session.ExecutionContext, token *capability.IntentToken, toAgent string, allowedActions []string) (*capability.DelegationGrant, error) {
	grant, err := b.deps.Authority.Delegate(ctx, token, toAgent, allowedActions)
	if err != nil {
		ec.LogError(b.name, "DELEGATION_FAILED", err.Error())
		return nil, fmt.Errorf("delegate to %s: %w", toAgent, err)
	}
	if _, err := ec.LogAction(b.name, "DELEGATION_CREATED", "EXECUTED", map[string]any{
		"to_agent":        toAgent,
		"allowed_actions": allowedActions,
		"grant_id":        grant.ID,
	}); err != nil {
		b.logger.Error("audit log append failed", "error", err)
	}
	return grant, nil
}

// askConfirmation poses an escalation prompt. Without a ConfirmFunc the
// answer is yes. A prompt that outlives the timeout is logged as
// CONFIRMATION_TIMEOUT and treated as approval so a stalled terminal can
// never wedge a session.
func (b *Base) askConfirmation(ctx context.Context, ec *session.ExecutionContext, prompt string) bool {
	if b.deps.Confirm == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, b.deps.confirmTimeout())
	defer cancel()

	type answer struct {
		approved bool
		err      error
	}
	ch := make(chan answer, 1)
	go func() {
		approved, err := b.deps.Confirm(ctx, prompt)
		ch <- answer{approved: approved, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			b.logger.Warn("confirmation failed, proceeding", "error", a.err)
			return true
		}
		return a.approved
	case <-ctx.Done():
		if _, err := ec.LogAction(b.name, "CONFIRMATION_TIMEOUT", "PROCEEDED", map[string]any{"prompt": prompt}); err != nil {
			b.logger.Error("audit log append failed", "error", err)
		}
		return true
	}
}

package capability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
)

// Default validity windows for stage tokens and delegation grants.
const (
	DefaultTokenValidity      = time.Hour
	DefaultDelegationValidity = 30 * time.Minute
)

// Authority captures plans, issues scoped intent tokens, and records
// delegation grants. The pipeline treats it as an external collaborator;
// LocalAuthority is the in-process implementation.
type Authority interface {
	CapturePlan(ctx context.Context, agent, goal string, steps []PlanStep, metadata map[string]string) (*PlanCapture, error)
	IssueToken(ctx context.Context, plan *PlanCapture) (*IntentToken, error)
	Delegate(ctx context.Context, token *IntentToken, toAgent string, allowedActions []string) (*DelegationGrant, error)
}

// IntentClaims is the JWT payload of a signed intent token.
type IntentClaims struct {
	jwt.RegisteredClaims
	PlanID string   `json:"plan_id"`
	Scopes []string `json:"scopes"`
}

// DelegationClaims is the JWT payload of a signed delegation grant.
type DelegationClaims struct {
	jwt.RegisteredClaims
	DelegatorID    string   `json:"delegator_id"`
	ParentTokenID  string   `json:"parent_token_id"`
	AllowedActions []string `json:"allowed_actions"`
}

// LocalAuthority signs tokens with a shared HMAC key and enforces per-agent
// policies. Policy patterns are checked step by step at issuance; CEL
// conditions, when present, are compiled once and evaluated against the
// captured plan.
type LocalAuthority struct {
	signingKey []byte
	policies   map[string]Policy

	clock              func() time.Time
	tokenValidity      time.Duration
	delegationValidity time.Duration

	celEnv   *cel.Env
	prgMu    sync.Mutex
	prgCache map[string]cel.Program
}

// AuthorityOption configures a LocalAuthority.
type AuthorityOption func(*LocalAuthority)

// WithClock overrides the authority's time source.
func WithClock(clock func() time.Time) AuthorityOption {
	return func(a *LocalAuthority) { a.clock = clock }
}

// WithTokenValidity overrides the intent token lifetime.
func WithTokenValidity(d time.Duration) AuthorityOption {
	return func(a *LocalAuthority) { a.tokenValidity = d }
}

// WithDelegationValidity overrides the delegation grant lifetime.
func WithDelegationValidity(d time.Duration) AuthorityOption {
	return func(a *LocalAuthority) { a.delegationValidity = d }
}

// NewLocalAuthority builds an authority over the given signing key and
// per-agent policies.
func NewLocalAuthority(signingKey []byte, policies map[string]Policy, opts ...AuthorityOption) (*LocalAuthority, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("capability: empty signing key")
	}

	env, err := cel.NewEnv(
		cel.Variable("goal", cel.StringType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("steps", cel.ListType(cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("capability: cel environment: %w", err)
	}

	a := &LocalAuthority{
		signingKey:         signingKey,
		policies:           policies,
		clock:              time.Now,
		tokenValidity:      DefaultTokenValidity,
		delegationValidity: DefaultDelegationValidity,
		celEnv:             env,
		prgCache:           make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// CapturePlan records an agent's intent. The agent must be known and the
// plan non-trivial; step-level policy checks happen at issuance.
func (a *LocalAuthority) CapturePlan(ctx context.Context, agent, goal string, steps []PlanStep, metadata map[string]string) (*PlanCapture, error) {
	if _, ok := a.policies[agent]; !ok {
		return nil, &PlanCaptureError{Agent: agent, Reason: "no policy registered"}
	}
	if goal == "" {
		return nil, &PlanCaptureError{Agent: agent, Reason: "empty goal"}
	}
	if len(steps) == 0 {
		return nil, &PlanCaptureError{Agent: agent, Reason: "plan has no steps"}
	}
	for _, step := range steps {
		if step.Domain == "" || step.Action == "" {
			return nil, &PlanCaptureError{Agent: agent, Reason: "step missing domain or action"}
		}
	}

	return &PlanCapture{
		ID:         "plan_" + uuid.NewString(),
		Agent:      agent,
		Goal:       goal,
		Steps:      steps,
		Metadata:   metadata,
		CapturedAt: a.clock().UTC(),
	}, nil
}

// IssueToken validates every plan step against the agent's policy and the
// policy's CEL conditions, then signs an intent token scoped to exactly the
// planned steps.
func (a *LocalAuthority) IssueToken(ctx context.Context, plan *PlanCapture) (*IntentToken, error) {
	policy, ok := a.policies[plan.Agent]
	if !ok {
		return nil, &TokenIssuanceError{Agent: plan.Agent, Reason: "no policy registered"}
	}

	scopes := make([]string, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if !policy.Permits(step.Domain, step.Action) {
			return nil, &TokenIssuanceError{
				Agent:  plan.Agent,
				Reason: fmt.Sprintf("step %s/%s outside policy", step.Domain, step.Action),
			}
		}
		scopes = append(scopes, step.Domain+"/"+step.Action)
	}

	for _, cond := range policy.Conditions {
		passed, err := a.evaluateCondition(cond, plan)
		if err != nil {
			return nil, &TokenIssuanceError{Agent: plan.Agent, Reason: "condition evaluation failed", Err: err}
		}
		if !passed {
			return nil, &TokenIssuanceError{Agent: plan.Agent, Reason: fmt.Sprintf("condition not satisfied: %s", cond)}
		}
	}

	now := a.clock().UTC()
	id := "tok_" + uuid.NewString()
	expires := now.Add(a.tokenValidity)

	claims := IntentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   plan.Agent,
			Issuer:    "finguard/authority",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		PlanID: plan.ID,
		Scopes: scopes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey)
	if err != nil {
		return nil, &TokenIssuanceError{Agent: plan.Agent, Reason: "signing failed", Err: err}
	}

	return &IntentToken{
		ID:        id,
		PlanID:    plan.ID,
		Agent:     plan.Agent,
		Scopes:    scopes,
		IssuedAt:  now,
		ExpiresAt: expires,
		Signed:    signed,
	}, nil
}

// Delegate grants toAgent a subset of the token's scope. The parent token
// must still be valid and every requested action must already be covered.
func (a *LocalAuthority) Delegate(ctx context.Context, token *IntentToken, toAgent string, allowedActions []string) (*DelegationGrant, error) {
	now := a.clock().UTC()
	if token == nil {
		return nil, &DelegationError{ToAgent: toAgent, Reason: "nil parent token"}
	}
	if now.After(token.ExpiresAt) {
		return nil, &DelegationError{FromAgent: token.Agent, ToAgent: toAgent, Reason: "parent token expired"}
	}
	if len(allowedActions) == 0 {
		return nil, &DelegationError{FromAgent: token.Agent, ToAgent: toAgent, Reason: "no actions requested"}
	}
	for _, action := range allowedActions {
		if !scopeListContains(token.Scopes, action) {
			return nil, &DelegationError{
				FromAgent: token.Agent,
				ToAgent:   toAgent,
				Reason:    fmt.Sprintf("action %s outside parent token scope", action),
			}
		}
	}

	id := "dlg_" + uuid.NewString()
	expires := now.Add(a.delegationValidity)
	if expires.After(token.ExpiresAt) {
		expires = token.ExpiresAt
	}

	claims := DelegationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   toAgent,
			Issuer:    "finguard/authority",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		DelegatorID:    token.Agent,
		ParentTokenID:  token.ID,
		AllowedActions: allowedActions,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey)
	if err != nil {
		return nil, &DelegationError{FromAgent: token.Agent, ToAgent: toAgent, Reason: "signing failed", Err: err}
	}

	return &DelegationGrant{
		ID:             id,
		ParentTokenID:  token.ID,
		FromAgent:      token.Agent,
		ToAgent:        toAgent,
		AllowedActions: allowedActions,
		IssuedAt:       now,
		ExpiresAt:      expires,
		Signed:         signed,
	}, nil
}

// VerifyToken parses and validates a signed intent token.
func (a *LocalAuthority) VerifyToken(signed string) (*IntentClaims, error) {
	token, err := jwt.ParseWithClaims(signed, &IntentClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	}, jwt.WithTimeFunc(a.clock))
	if err != nil {
		return nil, fmt.Errorf("capability: verify token: %w", err)
	}
	claims, ok := token.Claims.(*IntentClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

func (a *LocalAuthority) evaluateCondition(expr string, plan *PlanCapture) (bool, error) {
	a.prgMu.Lock()
	prg, hit := a.prgCache[expr]
	if !hit {
		ast, issues := a.celEnv.Compile(expr)
		if issues != nil && issues.Err() != nil {
			a.prgMu.Unlock()
			return false, fmt.Errorf("compile: %w", issues.Err())
		}
		p, err := a.celEnv.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			a.prgMu.Unlock()
			return false, fmt.Errorf("program: %w", err)
		}
		a.prgCache[expr] = p
		prg = p
	}
	a.prgMu.Unlock()

	metadata := plan.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	steps := make([]any, len(plan.Steps))
	for i, step := range plan.Steps {
		steps[i] = map[string]any{
			"domain":  step.Domain,
			"action":  step.Action,
			"purpose": step.Purpose,
		}
	}

	out, _, err := prg.Eval(map[string]any{
		"goal":     plan.Goal,
		"metadata": metadata,
		"steps":    steps,
	})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition result is not a bool")
	}
	return val, nil
}

func scopeListContains(scopes []string, action string) bool {
	for _, s := range scopes {
		if s == action {
			return true
		}
	}
	return false
}

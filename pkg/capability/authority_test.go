package capability

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testPolicies() map[string]Policy {
	return map[string]Policy{
		"fraud_agent": {
			Allow: []string{"fraud/*"},
			Deny:  []string{"risk/*", "compliance/*", "memory/*"},
		},
		"risk_agent": {
			Allow: []string{"risk/*"},
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPolicyPermits(t *testing.T) {
	p := Policy{Allow: []string{"fraud/*"}, Deny: []string{"fraud/purge"}}

	if !p.Permits("fraud", "detect_deepfakes") {
		t.Fatal("expected fraud/detect_deepfakes to be permitted")
	}
	if p.Permits("risk", "calculate_risk_score") {
		t.Fatal("risk domain should not be permitted")
	}
	if p.Permits("fraud", "purge") {
		t.Fatal("deny must win over allow")
	}
}

func TestCapturePlanRejectsUnknownAgent(t *testing.T) {
	a, err := NewLocalAuthority(testKey, testPolicies())
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.CapturePlan(context.Background(), "ghost_agent", "anything", []PlanStep{{Domain: "fraud", Action: "x"}}, nil)
	var pce *PlanCaptureError
	if !errors.As(err, &pce) {
		t.Fatalf("expected PlanCaptureError, got %v", err)
	}
}

func TestCapturePlanRejectsEmptyPlan(t *testing.T) {
	a, err := NewLocalAuthority(testKey, testPolicies())
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.CapturePlan(context.Background(), "fraud_agent", "scan input", nil, nil)
	var pce *PlanCaptureError
	if !errors.As(err, &pce) {
		t.Fatalf("expected PlanCaptureError for empty steps, got %v", err)
	}

	_, err = a.CapturePlan(context.Background(), "fraud_agent", "", []PlanStep{{Domain: "fraud", Action: "x"}}, nil)
	if !errors.As(err, &pce) {
		t.Fatalf("expected PlanCaptureError for empty goal, got %v", err)
	}
}

func TestIssueTokenScopesAndExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := NewLocalAuthority(testKey, testPolicies(), WithClock(fixedClock(now)))
	if err != nil {
		t.Fatal(err)
	}

	plan, err := a.CapturePlan(context.Background(), "fraud_agent", "screen input", []PlanStep{
		{Domain: "fraud", Action: "detect_deepfakes"},
		{Domain: "fraud", Action: "analyze_anomalies"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	token, err := a.IssueToken(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(token.Scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %v", token.Scopes)
	}
	if !token.Covers("fraud", "detect_deepfakes") || !token.Covers("fraud", "analyze_anomalies") {
		t.Fatalf("token does not cover planned steps: %v", token.Scopes)
	}
	if token.Covers("risk", "calculate_risk_score") {
		t.Fatal("token must not cover unplanned actions")
	}
	if got := token.ExpiresAt.Sub(token.IssuedAt); got != DefaultTokenValidity {
		t.Fatalf("expected %v validity, got %v", DefaultTokenValidity, got)
	}

	claims, err := a.VerifyToken(token.Signed)
	if err != nil {
		t.Fatalf("signed token failed verification: %v", err)
	}
	if claims.Subject != "fraud_agent" || claims.PlanID != plan.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestIssueTokenRejectsStepOutsidePolicy(t *testing.T) {
	a, err := NewLocalAuthority(testKey, testPolicies())
	if err != nil {
		t.Fatal(err)
	}

	plan, err := a.CapturePlan(context.Background(), "fraud_agent", "overreach", []PlanStep{
		{Domain: "risk", Action: "calculate_risk_score"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.IssueToken(context.Background(), plan)
	var tie *TokenIssuanceError
	if !errors.As(err, &tie) {
		t.Fatalf("expected TokenIssuanceError, got %v", err)
	}
}

func TestIssueTokenConditions(t *testing.T) {
	policies := map[string]Policy{
		"fraud_agent": {
			Allow:      []string{"fraud/*"},
			Conditions: []string{`goal.contains("screen")`, `metadata["env"] != "forbidden"`},
		},
	}
	a, err := NewLocalAuthority(testKey, policies)
	if err != nil {
		t.Fatal(err)
	}

	plan, err := a.CapturePlan(context.Background(), "fraud_agent", "screen input", []PlanStep{
		{Domain: "fraud", Action: "detect_deepfakes"},
	}, map[string]string{"env": "test"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.IssueToken(context.Background(), plan); err != nil {
		t.Fatalf("conditions should pass: %v", err)
	}

	bad, err := a.CapturePlan(context.Background(), "fraud_agent", "unrelated goal", []PlanStep{
		{Domain: "fraud", Action: "detect_deepfakes"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.IssueToken(context.Background(), bad)
	var tie *TokenIssuanceError
	if !errors.As(err, &tie) {
		t.Fatalf("expected TokenIssuanceError for failed condition, got %v", err)
	}
}

func TestDelegateSubsetOfScope(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := NewLocalAuthority(testKey, testPolicies(), WithClock(fixedClock(now)))
	if err != nil {
		t.Fatal(err)
	}

	plan, err := a.CapturePlan(context.Background(), "fraud_agent", "screen input", []PlanStep{
		{Domain: "fraud", Action: "detect_deepfakes"},
		{Domain: "fraud", Action: "analyze_anomalies"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	token, err := a.IssueToken(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}

	grant, err := a.Delegate(context.Background(), token, "risk_agent", []string{"fraud/analyze_anomalies"})
	if err != nil {
		t.Fatalf("subset delegation should succeed: %v", err)
	}
	if grant.FromAgent != "fraud_agent" || grant.ToAgent != "risk_agent" {
		t.Fatalf("unexpected grant parties: %+v", grant)
	}
	if got := grant.ExpiresAt.Sub(grant.IssuedAt); got != DefaultDelegationValidity {
		t.Fatalf("expected %v validity, got %v", DefaultDelegationValidity, got)
	}

	_, err = a.Delegate(context.Background(), token, "risk_agent", []string{"risk/calculate_risk_score"})
	var de *DelegationError
	if !errors.As(err, &de) {
		t.Fatalf("expected DelegationError for out-of-scope action, got %v", err)
	}
}

func TestDelegateRejectsExpiredParent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := now
	a, err := NewLocalAuthority(testKey, testPolicies(), WithClock(func() time.Time { return current }))
	if err != nil {
		t.Fatal(err)
	}

	plan, err := a.CapturePlan(context.Background(), "fraud_agent", "screen input", []PlanStep{
		{Domain: "fraud", Action: "detect_deepfakes"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	token, err := a.IssueToken(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}

	current = now.Add(DefaultTokenValidity + time.Minute)
	_, err = a.Delegate(context.Background(), token, "risk_agent", []string{"fraud/detect_deepfakes"})
	var de *DelegationError
	if !errors.As(err, &de) {
		t.Fatalf("expected DelegationError for expired parent, got %v", err)
	}

	if _, err := a.VerifyToken(token.Signed); err == nil {
		t.Fatal("expired token should fail verification")
	}
}

package agent

import (
	"context"
	"fmt"

	"github.com/finguard-labs/finguard/pkg/capability"
	"github.com/finguard-labs/finguard/pkg/contracts"
	"github.com/finguard-labs/finguard/pkg/session"
)

// riskEscalationThreshold gates the compliance stage.
const riskEscalationThreshold = 70.0

// fallbackRiskScore is reported when the stage fails outright; it sits in
// the middle of the scale so neither extreme is assumed.
const fallbackRiskScore = 50.0

// RiskAgent runs the second pipeline stage: scoring the fraud finding and
// assessing its impact.
type RiskAgent struct {
	Base
}

// NewRiskAgent builds the risk stage agent.
func NewRiskAgent(deps Deps) *RiskAgent {
	return &RiskAgent{Base: newBase(RiskAgentID, "RiskAgent", deps)}
}

// Assess scores the fraud finding. A failed stage produces a report with
// the fallback score and no compliance escalation.
func (a *RiskAgent) Assess(ctx context.Context, ec *session.ExecutionContext, fraud *contracts.FraudReport) *contracts.RiskReport {
	a.logger.Info("starting risk assessment", "session_id", ec.SessionID(), "fraud_finding", string(fraud.Decision))

	report, err := a.assess(ctx, ec, fraud)
	if err != nil {
		ec.LogError(a.name, "ASSESSMENT_FAILED", err.Error())
		report = &contracts.RiskReport{
			Agent:        a.name,
			Timestamp:    a.deps.clock().UTC(),
			FraudFinding: fraud.Decision,
			RiskScore:    fallbackRiskScore,
			Error:        err.Error(),
		}
	}
	ec.SetRiskReport(report)
	a.logger.Info("risk assessment complete", "risk_score", report.RiskScore)
	return report
}

func (a *RiskAgent) assess(ctx context.Context, ec *session.ExecutionContext, fraud *contracts.FraudReport) (*contracts.RiskReport, error) {
	multiplier := 1.0
	if fraud.Decision == contracts.DecisionFraud {
		multiplier = 1.5
	}

	goal := fmt.Sprintf("Assess risk for a %s finding on %s input", fraud.Decision, ec.MediaType())
	plan, err := a.capturePlan(ctx, goal, []capability.PlanStep{
		{Domain: "risk", Action: "calculate_risk_score", Purpose: "Calculate comprehensive risk score"},
		{Domain: "risk", Action: "assess_impact", Purpose: "Assess potential impact of threat"},
	})
	if err != nil {
		return nil, err
	}
	token, err := a.requestToken(ctx, plan)
	if err != nil {
		return nil, err
	}

	scoreResult, err := a.invokeAction(ctx, ec, token, "risk", "calculate_risk_score", "RISK_SCORING",
		map[string]any{
			"fraud_indicators": map[string]any{
				"confidence":       fraud.DetectionData.Confidence,
				"fraud_indicators": fraud.DetectionData.FraudIndicators,
			},
			"severity_multiplier": multiplier,
		},
		func(result map[string]any) map[string]any {
			return map[string]any{"score": floatFrom(result, "risk_score")}
		})
	if err != nil {
		return nil, err
	}

	impactResult, err := a.invokeAction(ctx, ec, token, "risk", "assess_impact", "IMPACT_ASSESSMENT",
		map[string]any{
			"threat_type": string(fraud.Decision),
			"media_type":  string(ec.MediaType()),
		},
		func(result map[string]any) map[string]any {
			return map[string]any{"severity": stringFrom(result, "severity")}
		})
	if err != nil {
		return nil, err
	}

	riskScore := floatFrom(scoreResult, "risk_score")

	if ec.Mode() == contracts.ModeAsk && riskScore > riskEscalationThreshold {
		confirmed := a.askConfirmation(ctx, ec, fmt.Sprintf("Risk Score: %.0f/100. Should I escalate to the Compliance Agent?", riskScore))
		if !confirmed {
			if _, err := ec.LogAction(a.name, "USER_OVERRIDE", "ESCALATION_BLOCKED", map[string]any{}); err != nil {
				a.logger.Error("audit log append failed", "error", err)
			}
		}
	}

	return &contracts.RiskReport{
		Agent:                a.name,
		Timestamp:            a.deps.clock().UTC(),
		FraudFinding:         fraud.Decision,
		RiskScore:            riskScore,
		Severity:             stringFrom(impactResult, "severity"),
		EscalateToCompliance: riskScore > riskEscalationThreshold,
		Recommendations:      stringsFrom(impactResult, "recommendations"),
	}, nil
}

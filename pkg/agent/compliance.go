package agent

import (
	"context"
	"fmt"

	"github.com/finguard-labs/finguard/pkg/capability"
	"github.com/finguard-labs/finguard/pkg/contracts"
	"github.com/finguard-labs/finguard/pkg/session"
)

// ComplianceAgent runs the third pipeline stage: AML/KYC checks and
// regulation validation.
type ComplianceAgent struct {
	Base
}

// NewComplianceAgent builds the compliance stage agent.
func NewComplianceAgent(deps Deps) *ComplianceAgent {
	return &ComplianceAgent{Base: newBase(ComplianceAgentID, "ComplianceAgent", deps)}
}

// Validate checks the session against compliance obligations. A failed
// stage produces a report with approval withheld.
func (a *ComplianceAgent) Validate(ctx context.Context, ec *session.ExecutionContext, fraud *contracts.FraudReport, risk *contracts.RiskReport) *contracts.ComplianceReport {
	a.logger.Info("starting compliance validation", "session_id", ec.SessionID())

	report, err := a.validate(ctx, ec, fraud, risk)
	if err != nil {
		ec.LogError(a.name, "VALIDATION_FAILED", err.Error())
		report = &contracts.ComplianceReport{
			Agent:              a.name,
			Timestamp:          a.deps.clock().UTC(),
			ComplianceApproved: false,
			Error:              err.Error(),
		}
	}
	ec.SetComplianceReport(report)
	a.logger.Info("compliance validation complete", "approved", report.ComplianceApproved)
	return report
}

func (a *ComplianceAgent) validate(ctx context.Context, ec *session.ExecutionContext, fraud *contracts.FraudReport, risk *contracts.RiskReport) (*contracts.ComplianceReport, error) {
	goal := fmt.Sprintf("Validate compliance for a %s finding with risk score %.0f", fraud.Decision, risk.RiskScore)
	plan, err := a.capturePlan(ctx, goal, []capability.PlanStep{
		{Domain: "compliance", Action: "check_aml_kyc", Purpose: "Check AML/KYC compliance requirements"},
		{Domain: "compliance", Action: "validate_regulations", Purpose: "Validate against applicable regulations"},
	})
	if err != nil {
		return nil, err
	}
	token, err := a.requestToken(ctx, plan)
	if err != nil {
		return nil, err
	}

	amlResult, err := a.invokeAction(ctx, ec, token, "compliance", "check_aml_kyc", "AML_KYC_CHECK",
		map[string]any{
			"fraud_level": string(fraud.Decision),
			"risk_score":  risk.RiskScore,
		},
		func(result map[string]any) map[string]any {
			return map[string]any{"status": stringFrom(result, "aml_status")}
		})
	if err != nil {
		return nil, err
	}

	regulationResult, err := a.invokeAction(ctx, ec, token, "compliance", "validate_regulations", "REGULATION_VALIDATION",
		map[string]any{
			"threat_type": string(fraud.Decision),
			"input_type":  string(ec.MediaType()),
		},
		func(result map[string]any) map[string]any {
			return map[string]any{"violations": stringsFrom(result, "violations")}
		})
	if err != nil {
		return nil, err
	}

	violations := stringsFrom(regulationResult, "violations")

	return &contracts.ComplianceReport{
		Agent:              a.name,
		Timestamp:          a.deps.clock().UTC(),
		AMLKYCStatus:       stringFrom(amlResult, "aml_status"),
		Violations:         violations,
		RequiredActions:    stringsFrom(regulationResult, "required_actions"),
		ComplianceApproved: len(violations) == 0,
	}, nil
}

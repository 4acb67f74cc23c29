package gateway

import (
	"context"
	"log/slog"

	"github.com/finguard-labs/finguard/pkg/contracts"
)

// AML/KYC status values reported by the compliance domain.
const (
	AMLStatusClear          = "CLEAR"
	AMLStatusReviewRequired = "REVIEW_REQUIRED"
	AMLStatusEscalated      = "ESCALATED"
)

// Violation identifiers.
const (
	ViolationSuspiciousActivity   = "aml_suspicious_activity_reporting"
	ViolationDocumentVerification = "kyc_document_verification"
)

// ComplianceHandlers implements the compliance domain with fixed rule tables.
type ComplianceHandlers struct {
	logger *slog.Logger
}

// NewComplianceHandlers builds the compliance handler set.
func NewComplianceHandlers(logger *slog.Logger) *ComplianceHandlers {
	return &ComplianceHandlers{logger: logger.With("component", "compliance_handlers")}
}

// CheckAMLKYC grades the session against AML/KYC obligations using the fraud
// classification and the risk score.
func (h *ComplianceHandlers) CheckAMLKYC(ctx context.Context, payload map[string]any) (map[string]any, error) {
	fraudLevel := stringField(payload, "fraud_level")
	riskScore := floatField(payload, "risk_score")

	var status string
	switch {
	case fraudLevel == string(contracts.DecisionFraud) && riskScore > 80:
		status = AMLStatusEscalated
	case fraudLevel != string(contracts.DecisionSafe) || riskScore > 70:
		status = AMLStatusReviewRequired
	default:
		status = AMLStatusClear
	}

	h.logger.Info("aml/kyc check complete", "fraud_level", fraudLevel, "risk_score", riskScore, "status", status)

	return map[string]any{
		"aml_status":       status,
		"checks_performed": []string{"AML", "KYC"},
	}, nil
}

// ValidateRegulations derives the violation list for the threat. A fraud
// finding always triggers suspicious activity reporting; fraudulent
// non-text media additionally requires document re-verification.
func (h *ComplianceHandlers) ValidateRegulations(ctx context.Context, payload map[string]any) (map[string]any, error) {
	threatType := stringField(payload, "threat_type")
	inputType := stringField(payload, "input_type")

	violations := []string{}
	requiredActions := []string{}
	if threatType == string(contracts.DecisionFraud) {
		violations = append(violations, ViolationSuspiciousActivity)
		requiredActions = append(requiredActions, "File a suspicious activity report")
		if inputType != string(contracts.MediaText) {
			violations = append(violations, ViolationDocumentVerification)
			requiredActions = append(requiredActions, "Re-verify customer identity documents")
		}
	}

	h.logger.Info("regulation validation complete", "threat_type", threatType, "violations", len(violations))

	return map[string]any{
		"violations":       violations,
		"required_actions": requiredActions,
	}, nil
}

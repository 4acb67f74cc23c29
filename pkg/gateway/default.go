package gateway

import (
	"log/slog"

	"github.com/finguard-labs/finguard/pkg/scoring"
)

// Payload schemas for the registered actions. Unknown extra fields are
// tolerated; only the shape of the fields the handlers read is enforced.
const (
	detectDeepfakesSchema = `{
		"type": "object",
		"required": ["input"],
		"properties": {
			"input": {"type": "string"},
			"media_type": {"type": "string"}
		}
	}`
	analyzeAnomaliesSchema = `{
		"type": "object",
		"required": ["input"],
		"properties": {
			"input": {"type": "string"},
			"focus": {"type": "string"}
		}
	}`
	calculateRiskScoreSchema = `{
		"type": "object",
		"properties": {
			"fraud_indicators": {"type": "object"},
			"severity_multiplier": {"type": "number", "minimum": 0}
		}
	}`
	assessImpactSchema = `{
		"type": "object",
		"required": ["threat_type"],
		"properties": {
			"threat_type": {"type": "string"},
			"media_type": {"type": "string"}
		}
	}`
	checkAMLKYCSchema = `{
		"type": "object",
		"required": ["fraud_level"],
		"properties": {
			"fraud_level": {"type": "string"},
			"risk_score": {"type": "number"}
		}
	}`
	validateRegulationsSchema = `{
		"type": "object",
		"required": ["threat_type"],
		"properties": {
			"threat_type": {"type": "string"},
			"input_type": {"type": "string"}
		}
	}`
	consolidateFindingsSchema = `{
		"type": "object",
		"properties": {
			"reports": {"type": "object"},
			"blocked_actions": {"type": "array"}
		}
	}`
	generateAuditTrailSchema = `{
		"type": "object",
		"required": ["session_id"],
		"properties": {
			"session_id": {"type": "string"},
			"audit_log": {"type": "array"},
			"errors": {"type": "array"}
		}
	}`
)

// DefaultRegistry wires the four domain handler sets with their payload
// schemas.
func DefaultRegistry(engine *scoring.Engine, logger *slog.Logger) (*Registry, error) {
	fraud := NewFraudHandlers(engine, logger)
	risk := NewRiskHandlers(logger)
	compliance := NewComplianceHandlers(logger)
	memory := NewMemoryHandlers(logger)

	r := NewRegistry()
	registrations := []struct {
		domain, action, schema string
		handler                Handler
	}{
		{"fraud", "detect_deepfakes", detectDeepfakesSchema, fraud.DetectDeepfakes},
		{"fraud", "analyze_anomalies", analyzeAnomaliesSchema, fraud.AnalyzeAnomalies},
		{"risk", "calculate_risk_score", calculateRiskScoreSchema, risk.CalculateRiskScore},
		{"risk", "assess_impact", assessImpactSchema, risk.AssessImpact},
		{"compliance", "check_aml_kyc", checkAMLKYCSchema, compliance.CheckAMLKYC},
		{"compliance", "validate_regulations", validateRegulationsSchema, compliance.ValidateRegulations},
		{"memory", "consolidate_findings", consolidateFindingsSchema, memory.ConsolidateFindings},
		{"memory", "generate_audit_trail", generateAuditTrailSchema, memory.GenerateAuditTrail},
	}
	for _, reg := range registrations {
		if err := r.RegisterWithSchema(reg.domain, reg.action, reg.schema, reg.handler); err != nil {
			return nil, err
		}
	}
	return r, nil
}

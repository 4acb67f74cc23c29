package gateway

import (
	"context"
	"log/slog"
	"math"

	"github.com/finguard-labs/finguard/pkg/contracts"
)

// Severity levels reported by the risk domain.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// RiskHandlers implements the risk domain with fixed deterministic rules.
type RiskHandlers struct {
	logger *slog.Logger
}

// NewRiskHandlers builds the risk handler set.
func NewRiskHandlers(logger *slog.Logger) *RiskHandlers {
	return &RiskHandlers{logger: logger.With("component", "risk_handlers")}
}

// CalculateRiskScore derives a 0-100 score from the fraud stage's detection
// data. Confidence contributes up to 70 points, each indicator 5 points up
// to 6 indicators, and the severity multiplier scales the total before the
// 100 cap.
func (h *RiskHandlers) CalculateRiskScore(ctx context.Context, payload map[string]any) (map[string]any, error) {
	indicators := mapField(payload, "fraud_indicators")
	confidence := floatField(indicators, "confidence")
	indicatorCount := len(listField(indicators, "fraud_indicators"))
	multiplier := floatField(payload, "severity_multiplier")
	if multiplier == 0 {
		multiplier = 1.0
	}

	base := confidence*70 + math.Min(float64(indicatorCount), 6)*5
	score := math.Round(math.Min(100, base*multiplier))

	h.logger.Info("risk score calculated", "score", score, "multiplier", multiplier)

	return map[string]any{
		"risk_score":          score,
		"severity":            severityForScore(score),
		"mitigation_required": score > 50,
	}, nil
}

// AssessImpact maps the threat classification to a severity band with
// matching mitigation recommendations.
func (h *RiskHandlers) AssessImpact(ctx context.Context, payload map[string]any) (map[string]any, error) {
	threatType := stringField(payload, "threat_type")
	mediaType := stringField(payload, "media_type")

	var severity string
	var recommendations []string
	switch contracts.Decision(threatType) {
	case contracts.DecisionFraud:
		severity = SeverityCritical
		recommendations = []string{
			"Freeze related transactions pending investigation",
			"Notify the fraud operations team",
			"Preserve the session audit trail",
		}
	case contracts.DecisionCheckRequired:
		severity = SeverityMedium
		recommendations = []string{
			"Queue for manual analyst review",
			"Request additional verification from the customer",
		}
	default:
		severity = SeverityLow
		recommendations = []string{"No mitigation required"}
	}

	h.logger.Info("impact assessed", "threat_type", threatType, "severity", severity)

	return map[string]any{
		"severity":        severity,
		"threat_type":     threatType,
		"media_type":      mediaType,
		"recommendations": recommendations,
	}, nil
}

func severityForScore(score float64) string {
	switch {
	case score >= 90:
		return SeverityCritical
	case score >= 70:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

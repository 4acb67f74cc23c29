package gateway

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finguard-labs/finguard/pkg/scoring"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := DefaultRegistry(scoring.NewDefaultEngine(), discardLogger())
	require.NoError(t, err)
	return r
}

func TestDefaultRegistryCatalog(t *testing.T) {
	r := testRegistry(t)

	assert.Equal(t, []string{"compliance", "fraud", "memory", "risk"}, r.Domains())
	assert.Equal(t, []string{"analyze_anomalies", "detect_deepfakes"}, r.Actions("fraud"))
	assert.Equal(t, []string{"assess_impact", "calculate_risk_score"}, r.Actions("risk"))
	assert.Nil(t, r.Actions("nonexistent"))
}

func TestInvokeUnknownRoutes(t *testing.T) {
	r := testRegistry(t)

	_, err := r.Invoke(context.Background(), "ghost", "anything", nil)
	assert.ErrorIs(t, err, ErrUnknownDomain)

	_, err = r.Invoke(context.Background(), "fraud", "anything", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestInvokeSchemaRejection(t *testing.T) {
	r := testRegistry(t)

	_, err := r.Invoke(context.Background(), "fraud", "detect_deepfakes", map[string]any{
		"media_type": "text",
	})
	require.Error(t, err, "missing required input field should fail validation")

	_, err = r.Invoke(context.Background(), "fraud", "detect_deepfakes", map[string]any{
		"input": 42,
	})
	require.Error(t, err, "non-string input should fail validation")
}

func TestDetectDeepfakesVerdict(t *testing.T) {
	r := testRegistry(t)

	result, err := r.Invoke(context.Background(), "fraud", "detect_deepfakes", map[string]any{
		"input":      "Send crypto to offshore account urgently",
		"media_type": "text",
	})
	require.NoError(t, err)

	assert.Equal(t, true, result["deepfake_detected"])
	assert.Equal(t, 1.0, result["confidence"])
	assert.Equal(t, scoring.RecommendBlock, result["recommendation"])
	assert.Contains(t, result["fraud_indicators"], scoring.ComboIndicator)
}

func TestAnalyzeAnomaliesCountsIndicators(t *testing.T) {
	r := testRegistry(t)

	result, err := r.Invoke(context.Background(), "fraud", "analyze_anomalies", map[string]any{
		"input": "Send crypto to offshore account urgently",
		"focus": "minor_details",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result["anomaly_count"])
	assert.Equal(t, "minor_details", result["focus"])
}

func TestCalculateRiskScore(t *testing.T) {
	r := testRegistry(t)

	result, err := r.Invoke(context.Background(), "risk", "calculate_risk_score", map[string]any{
		"fraud_indicators": map[string]any{
			"confidence":       1.0,
			"fraud_indicators": []any{"offshore", "crypto", "urgent", "crypto_transfer_combo"},
		},
		"severity_multiplier": 1.5,
	})
	require.NoError(t, err)

	// min(100, (1.0*70 + 4*5) * 1.5) = 100
	assert.Equal(t, 100.0, result["risk_score"])
	assert.Equal(t, SeverityCritical, result["severity"])
	assert.Equal(t, true, result["mitigation_required"])
}

func TestCalculateRiskScoreDefaults(t *testing.T) {
	r := testRegistry(t)

	result, err := r.Invoke(context.Background(), "risk", "calculate_risk_score", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result["risk_score"])
	assert.Equal(t, SeverityLow, result["severity"])
	assert.Equal(t, false, result["mitigation_required"])
}

func TestAssessImpactBands(t *testing.T) {
	r := testRegistry(t)

	result, err := r.Invoke(context.Background(), "risk", "assess_impact", map[string]any{
		"threat_type": "FRAUD",
		"media_type":  "text",
	})
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, result["severity"])
	assert.NotEmpty(t, result["recommendations"])

	result, err = r.Invoke(context.Background(), "risk", "assess_impact", map[string]any{
		"threat_type": "CHECK-REQUIRED",
	})
	require.NoError(t, err)
	assert.Equal(t, SeverityMedium, result["severity"])

	result, err = r.Invoke(context.Background(), "risk", "assess_impact", map[string]any{
		"threat_type": "SAFE",
	})
	require.NoError(t, err)
	assert.Equal(t, SeverityLow, result["severity"])
}

func TestCheckAMLKYCStatuses(t *testing.T) {
	r := testRegistry(t)

	cases := []struct {
		name       string
		fraudLevel string
		riskScore  float64
		want       string
	}{
		{"escalated", "FRAUD", 95, AMLStatusEscalated},
		{"fraud below escalation", "FRAUD", 60, AMLStatusReviewRequired},
		{"check required", "CHECK-REQUIRED", 10, AMLStatusReviewRequired},
		{"safe high score", "SAFE", 75, AMLStatusReviewRequired},
		{"clear", "SAFE", 10, AMLStatusClear},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := r.Invoke(context.Background(), "compliance", "check_aml_kyc", map[string]any{
				"fraud_level": tc.fraudLevel,
				"risk_score":  tc.riskScore,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, result["aml_status"])
		})
	}
}

func TestValidateRegulations(t *testing.T) {
	r := testRegistry(t)

	result, err := r.Invoke(context.Background(), "compliance", "validate_regulations", map[string]any{
		"threat_type": "FRAUD",
		"input_type":  "image",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ViolationSuspiciousActivity, ViolationDocumentVerification}, result["violations"])

	result, err = r.Invoke(context.Background(), "compliance", "validate_regulations", map[string]any{
		"threat_type": "FRAUD",
		"input_type":  "text",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ViolationSuspiciousActivity}, result["violations"])

	result, err = r.Invoke(context.Background(), "compliance", "validate_regulations", map[string]any{
		"threat_type": "SAFE",
		"input_type":  "text",
	})
	require.NoError(t, err)
	assert.Empty(t, result["violations"])
}

func TestMemoryHandlers(t *testing.T) {
	r := testRegistry(t)

	result, err := r.Invoke(context.Background(), "memory", "consolidate_findings", map[string]any{
		"reports":         map[string]any{"fraud_agent": map[string]any{}, "memory_agent": map[string]any{}},
		"blocked_actions": []any{},
	})
	require.NoError(t, err)
	assert.Equal(t, ConsolidationSuccess, result["consolidation_status"])
	assert.Equal(t, 2, result["findings_recorded"])

	result, err = r.Invoke(context.Background(), "memory", "generate_audit_trail", map[string]any{
		"session_id": "SESSION_20250601120000_abcd1234",
		"audit_log":  []any{map[string]any{}, map[string]any{}},
		"errors":     []any{},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result["entries_recorded"])
	assert.Equal(t, true, result["recorded"])
}

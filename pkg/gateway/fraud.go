package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finguard-labs/finguard/pkg/scoring"
)

// FraudHandlers implements the fraud domain over the scoring engine.
type FraudHandlers struct {
	engine *scoring.Engine
	logger *slog.Logger
}

// NewFraudHandlers builds the fraud handler set.
func NewFraudHandlers(engine *scoring.Engine, logger *slog.Logger) *FraudHandlers {
	return &FraudHandlers{engine: engine, logger: logger.With("component", "fraud_handlers")}
}

// DetectDeepfakes scores the input content and reports the verdict in
// deepfake-detection terms.
func (h *FraudHandlers) DetectDeepfakes(ctx context.Context, payload map[string]any) (map[string]any, error) {
	content := stringField(payload, "input")
	mediaType := stringField(payload, "media_type")
	h.logger.Info("detecting deepfakes", "media_type", mediaType)

	res := h.engine.Analyze(content)

	return map[string]any{
		"deepfake_detected": res.FraudDetected,
		"confidence":        res.Confidence,
		"fraud_indicators":  res.Indicators,
		"recommendation":    res.Recommendation,
		"details":           fmt.Sprintf("Fraud analysis complete. Score: %v", res.Score),
	}, nil
}

// AnalyzeAnomalies scores the input content and reports each matched
// indicator as an anomaly.
func (h *FraudHandlers) AnalyzeAnomalies(ctx context.Context, payload map[string]any) (map[string]any, error) {
	content := stringField(payload, "input")
	focus := stringField(payload, "focus")
	h.logger.Info("analyzing anomalies", "focus", focus)

	res := h.engine.Analyze(content)

	return map[string]any{
		"anomalies":     res.Indicators,
		"anomaly_count": len(res.Indicators),
		"focus":         focus,
	}, nil
}

func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func floatField(payload map[string]any, key string) float64 {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func mapField(payload map[string]any, key string) map[string]any {
	if payload == nil {
		return nil
	}
	if v, ok := payload[key].(map[string]any); ok {
		return v
	}
	return nil
}

func listField(payload map[string]any, key string) []any {
	if payload == nil {
		return nil
	}
	if v, ok := payload[key].([]any); ok {
		return v
	}
	if v, ok := payload[key].([]string); ok {
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

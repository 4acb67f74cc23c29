package agent

import (
	"context"
	"fmt"

	"github.com/finguard-labs/finguard/pkg/capability"
	"github.com/finguard-labs/finguard/pkg/contracts"
	"github.com/finguard-labs/finguard/pkg/session"
)

// Fraud classification thresholds.
const (
	fraudConfidenceThreshold = 0.8
	fraudAnomalyThreshold    = 5
	checkConfidenceThreshold = 0.5
	checkAnomalyThreshold    = 2
)

// FraudAgent runs the first pipeline stage: deepfake detection and anomaly
// analysis over the raw input.
type FraudAgent struct {
	Base
}

// NewFraudAgent builds the fraud stage agent.
func NewFraudAgent(deps Deps) *FraudAgent {
	return &FraudAgent{Base: newBase(FraudAgentID, "FraudAgent", deps)}
}

// Evaluate analyzes the input and always produces a report: a degraded
// CHECK-REQUIRED report when the stage fails, so downstream gating still
// sees a conservative decision.
func (a *FraudAgent) Evaluate(ctx context.Context, ec *session.ExecutionContext, input string) *contracts.FraudReport {
	a.logger.Info("starting fraud analysis", "session_id", ec.SessionID())

	report, err := a.evaluate(ctx, ec, input)
	if err != nil {
		ec.LogError(a.name, "ANALYSIS_FAILED", err.Error())
		report = &contracts.FraudReport{
			Agent:          a.name,
			Timestamp:      a.deps.clock().UTC(),
			InputType:      ec.MediaType(),
			Mode:           ec.Mode(),
			Decision:       contracts.DecisionCheckRequired,
			EscalateToRisk: true,
			Error:          err.Error(),
		}
	}
	ec.SetFraudReport(report)
	a.logger.Info("fraud analysis complete", "decision", string(report.Decision))
	return report
}

func (a *FraudAgent) evaluate(ctx context.Context, ec *session.ExecutionContext, input string) (*contracts.FraudReport, error) {
	goal := fmt.Sprintf("Screen %s input for fraud, deepfakes, and anomalies", ec.MediaType())
	plan, err := a.capturePlan(ctx, goal, []capability.PlanStep{
		{Domain: "fraud", Action: "detect_deepfakes", Purpose: "Detect manipulated or synthetic content"},
		{Domain: "fraud", Action: "analyze_anomalies", Purpose: "Inspect minor details for abnormalities"},
	})
	if err != nil {
		return nil, err
	}
	token, err := a.requestToken(ctx, plan)
	if err != nil {
		return nil, err
	}

	detection, err := a.invokeAction(ctx, ec, token, "fraud", "detect_deepfakes", "DEEPFAKE_DETECTION",
		map[string]any{
			"input":      input,
			"media_type": string(ec.MediaType()),
		},
		func(result map[string]any) map[string]any {
			return map[string]any{"result": result}
		})
	if err != nil {
		return nil, err
	}

	anomalies, err := a.invokeAction(ctx, ec, token, "fraud", "analyze_anomalies", "ANOMALY_ANALYSIS",
		map[string]any{
			"input": input,
			"focus": "minor_details",
		},
		func(result map[string]any) map[string]any {
			return map[string]any{"result": result}
		})
	if err != nil {
		return nil, err
	}

	detectionData := toDetectionData(detection)
	anomalyData := toAnomalyData(anomalies)
	decision := classifyFraud(detectionData.Confidence, anomalyData.AnomalyCount)

	if ec.Mode() == contracts.ModeAsk && decision == contracts.DecisionFraud {
		confirmed := a.askConfirmation(ctx, ec, "I detected potential fraud. Should I escalate to the Risk Agent?")
		if !confirmed {
			if _, err := ec.LogAction(a.name, "USER_OVERRIDE", "ESCALATION_BLOCKED", map[string]any{}); err != nil {
				a.logger.Error("audit log append failed", "error", err)
			}
		}
	}

	return &contracts.FraudReport{
		Agent:          a.name,
		Timestamp:      a.deps.clock().UTC(),
		InputType:      ec.MediaType(),
		Mode:           ec.Mode(),
		Decision:       decision,
		DetectionData:  detectionData,
		AnomalyData:    anomalyData,
		EscalateToRisk: decision != contracts.DecisionSafe,
	}, nil
}

// classifyFraud grades the stage outcome from detection confidence and the
// anomaly count.
func classifyFraud(confidence float64, anomalyCount int) contracts.Decision {
	switch {
	case confidence > fraudConfidenceThreshold || anomalyCount > fraudAnomalyThreshold:
		return contracts.DecisionFraud
	case confidence > checkConfidenceThreshold || anomalyCount > checkAnomalyThreshold:
		return contracts.DecisionCheckRequired
	default:
		return contracts.DecisionSafe
	}
}

func toDetectionData(result map[string]any) contracts.DetectionData {
	return contracts.DetectionData{
		DeepfakeDetected: boolFrom(result, "deepfake_detected"),
		Confidence:       floatFrom(result, "confidence"),
		FraudIndicators:  stringsFrom(result, "fraud_indicators"),
		Recommendation:   stringFrom(result, "recommendation"),
		Details:          stringFrom(result, "details"),
	}
}

func toAnomalyData(result map[string]any) contracts.AnomalyData {
	anomalies := stringsFrom(result, "anomalies")
	return contracts.AnomalyData{
		Anomalies:    anomalies,
		AnomalyCount: len(anomalies),
		Focus:        stringFrom(result, "focus"),
	}
}

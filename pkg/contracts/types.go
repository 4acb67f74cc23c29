// Package contracts defines the shared types exchanged between the FinGuard
// pipeline stages, the action gateway, and the public analysis API.
package contracts

import (
	"fmt"
	"strings"
	"time"
)

// MediaType identifies the kind of content under analysis.
type MediaType string

const (
	MediaText     MediaType = "text"
	MediaImage    MediaType = "image"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// ParseMediaType converts a wire string into a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToLower(s)) {
	case MediaText, MediaImage, MediaAudio, MediaVideo, MediaDocument:
		return MediaType(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// ExecutionMode selects between interactive and autonomous operation.
// In ASK mode escalations pause for a human yes/no answer; in COMMAND mode
// the pipeline runs without confirmation prompts.
type ExecutionMode string

const (
	ModeAsk     ExecutionMode = "ASK"
	ModeCommand ExecutionMode = "COMMAND"
)

// ParseExecutionMode converts a wire string into an ExecutionMode.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(strings.ToUpper(s)) {
	case ModeAsk, ModeCommand:
		return ExecutionMode(strings.ToUpper(s)), nil
	}
	return "", fmt.Errorf("unknown execution mode %q", s)
}

// Decision is a single evaluator's classification of the content.
type Decision string

const (
	DecisionSafe          Decision = "SAFE"
	DecisionFraud         Decision = "FRAUD"
	DecisionCheckRequired Decision = "CHECK-REQUIRED"
)

// FinalDecision is the pipeline-level disposition computed after all stages
// have settled.
type FinalDecision string

const (
	FinalPending              FinalDecision = "PENDING"
	FinalSafeApproved         FinalDecision = "SAFE_APPROVED"
	FinalRequireManualReview  FinalDecision = "REQUIRE_MANUAL_REVIEW"
	FinalFraudDetectedMonitor FinalDecision = "FRAUD_DETECTED_MONITOR"
	FinalEscalateAuthorities  FinalDecision = "ESCALATE_TO_AUTHORITIES"
	FinalBlockImmediately     FinalDecision = "BLOCK_IMMEDIATELY"
)

// AuditEntry is one tamper-evident record in a session's audit trail.
// Entries are hash-chained: each entry carries the hash of its predecessor,
// so any mutation or reordering breaks chain verification.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Agent     string         `json:"agent"`
	Action    string         `json:"action"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`

	PreviousHash string `json:"previous_hash"`
	Hash         string `json:"hash"`
}

// BlockedAction records an action an agent attempted but was denied.
type BlockedAction struct {
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
}

// ErrorEntry records a stage-level failure that the pipeline absorbed.
type ErrorEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Agent        string    `json:"agent"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
}

// DetectionData is the fraud handler's deepfake-detection result.
type DetectionData struct {
	DeepfakeDetected bool     `json:"deepfake_detected"`
	Confidence       float64  `json:"confidence"`
	FraudIndicators  []string `json:"fraud_indicators"`
	Recommendation   string   `json:"recommendation"`
	Details          string   `json:"details,omitempty"`
}

// AnomalyData is the fraud handler's anomaly-analysis result.
type AnomalyData struct {
	Anomalies    []string `json:"anomalies"`
	AnomalyCount int      `json:"anomaly_count"`
	Focus        string   `json:"focus,omitempty"`
}

// FraudReport is the fraud stage's conclusion for one session.
type FraudReport struct {
	Agent          string        `json:"agent"`
	Timestamp      time.Time     `json:"timestamp"`
	InputType      MediaType     `json:"input_type"`
	Mode           ExecutionMode `json:"mode"`
	Decision       Decision      `json:"decision"`
	DetectionData  DetectionData `json:"detection_data"`
	AnomalyData    AnomalyData   `json:"anomaly_data"`
	EscalateToRisk bool          `json:"escalate_to_risk"`
	Error          string        `json:"error,omitempty"`
}

// RiskReport is the risk stage's conclusion for one session.
type RiskReport struct {
	Agent                string    `json:"agent"`
	Timestamp            time.Time `json:"timestamp"`
	FraudFinding         Decision  `json:"fraud_finding"`
	RiskScore            float64   `json:"risk_score"`
	Severity             string    `json:"severity"`
	EscalateToCompliance bool      `json:"escalate_to_compliance"`
	Recommendations      []string  `json:"recommendations,omitempty"`
	Error                string    `json:"error,omitempty"`
}

// ComplianceReport is the compliance stage's conclusion for one session.
type ComplianceReport struct {
	Agent              string    `json:"agent"`
	Timestamp          time.Time `json:"timestamp"`
	AMLKYCStatus       string    `json:"aml_kyc_status"`
	Violations         []string  `json:"violations"`
	RequiredActions    []string  `json:"required_actions,omitempty"`
	ComplianceApproved bool      `json:"compliance_approved"`
	Error              string    `json:"error,omitempty"`
}

// MemoryReport is the finalization stage's summary of the session.
type MemoryReport struct {
	Agent               string    `json:"agent"`
	Timestamp           time.Time `json:"timestamp"`
	SessionID           string    `json:"session_id"`
	TotalAuditEntries   int       `json:"total_audit_entries"`
	BlockedActionsCount int       `json:"blocked_actions_count"`
	ErrorsCount         int       `json:"errors_count"`
	ConsolidationStatus string    `json:"consolidation_status"`
	Error               string    `json:"error,omitempty"`
}

// AgentReports holds one slot per pipeline agent. Slots for stages that were
// never reached stay nil and marshal away; readers apply conservative
// defaults (risk score 0, compliance approved).
type AgentReports struct {
	Fraud      *FraudReport      `json:"fraud_agent,omitempty"`
	Risk       *RiskReport       `json:"risk_agent,omitempty"`
	Compliance *ComplianceReport `json:"compliance_agent,omitempty"`
	Memory     *MemoryReport     `json:"memory_agent,omitempty"`
}

// FinalReport is the orchestrator's complete answer for one session.
type FinalReport struct {
	SessionID      string          `json:"session_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Mode           ExecutionMode   `json:"mode"`
	MediaType      MediaType       `json:"media_type"`
	AgentReports   AgentReports    `json:"agent_reports"`
	AuditTrail     []AuditEntry    `json:"audit_trail"`
	BlockedActions []BlockedAction `json:"blocked_actions"`
	Errors         []ErrorEntry    `json:"errors"`
	FinalDecision  FinalDecision   `json:"final_decision"`
	Error          string          `json:"error,omitempty"`
}

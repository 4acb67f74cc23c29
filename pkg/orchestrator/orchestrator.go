// Package orchestrator drives the staged escalation pipeline: fraud analysis
// always runs, risk assessment runs only when the fraud stage escalates,
// compliance validation runs only when the risk stage escalates, and
// finalization always runs. The final decision is a pure function of the
// collected reports.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finguard-labs/finguard/pkg/agent"
	"github.com/finguard-labs/finguard/pkg/contracts"
	"github.com/finguard-labs/finguard/pkg/session"
)

// ErrInvalidInput rejects a request before any session state exists.
var ErrInvalidInput = errors.New("orchestrator: invalid input")

// riskEscalationScore mirrors the compliance gate in the risk stage.
const riskEscalationScore = 80.0

var tracer = otel.Tracer("finguard/orchestrator")

// Request describes one screening run.
type Request struct {
	Input     string
	MediaType string
	Mode      string
	Metadata  map[string]string
}

// Orchestrator owns the four agents and the session lifecycle.
type Orchestrator struct {
	fraud      *agent.FraudAgent
	risk       *agent.RiskAgent
	compliance *agent.ComplianceAgent
	memory     *agent.MemoryAgent
	logger     *slog.Logger
	clock      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the orchestrator's time source (session timestamps).
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// New builds an orchestrator; the agents share deps.
func New(deps agent.Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fraud:      agent.NewFraudAgent(deps),
		risk:       agent.NewRiskAgent(deps),
		compliance: agent.NewComplianceAgent(deps),
		memory:     agent.NewMemoryAgent(deps),
		logger:     deps.Logger.With("component", "orchestrator"),
		clock:      time.Now,
	}
	if deps.Clock != nil {
		o.clock = deps.Clock
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process validates the request, runs the pipeline, and assembles the final
// report. Validation failures return ErrInvalidInput and no report; once a
// session exists every stage failure is absorbed into the report instead.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*contracts.FinalReport, error) {
	if req.Input == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidInput)
	}
	mediaType, err := contracts.ParseMediaType(req.MediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	mode, err := contracts.ParseExecutionMode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	ec := session.New(mode, mediaType, req.Metadata, session.WithClock(o.clock))

	ctx, span := tracer.Start(ctx, "orchestrator.process",
		trace.WithAttributes(
			attribute.String("session.id", ec.SessionID()),
			attribute.String("session.mode", string(mode)),
			attribute.String("session.media_type", string(mediaType)),
		))
	defer span.End()

	o.logger.Info("starting analysis", "session_id", ec.SessionID(), "mode", string(mode), "media_type", string(mediaType))

	report := &contracts.FinalReport{
		SessionID:     ec.SessionID(),
		Timestamp:     ec.StartedAt(),
		Mode:          mode,
		MediaType:     mediaType,
		FinalDecision: contracts.FinalPending,
	}

	if err := o.runStages(ctx, ec, req.Input); err != nil {
		o.logger.Error("pipeline aborted", "session_id", ec.SessionID(), "error", err)
		ec.LogError("FinGuardOrchestrator", "ORCHESTRATION_FAILED", err.Error())
		report.Error = err.Error()
	} else {
		report.FinalDecision = FinalDecisionFor(ec.Reports())
	}

	report.AgentReports = ec.Reports()
	report.AuditTrail = ec.Trail()
	report.BlockedActions = ec.BlockedActions()
	report.Errors = ec.Errors()

	o.logger.Info("analysis complete", "session_id", ec.SessionID(), "final_decision", string(report.FinalDecision))
	return report, nil
}

// runStages executes the pipeline. A panic in any stage is contained here so
// the partial audit trail survives into the final report.
func (o *Orchestrator) runStages(ctx context.Context, ec *session.ExecutionContext, input string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()

	fraudReport := o.fraud.Evaluate(ctx, ec, input)

	if fraudReport.Decision != contracts.DecisionSafe && fraudReport.EscalateToRisk {
		riskReport := o.risk.Assess(ctx, ec, fraudReport)

		if riskReport.EscalateToCompliance {
			o.compliance.Validate(ctx, ec, fraudReport, riskReport)
		}
	}

	o.memory.Finalize(ctx, ec)
	return nil
}

// FinalDecisionFor folds the collected reports into the pipeline verdict.
// Stages that never ran contribute their conservative defaults: risk score
// zero, compliance approved.
func FinalDecisionFor(reports contracts.AgentReports) contracts.FinalDecision {
	fraudDecision := contracts.DecisionSafe
	if reports.Fraud != nil {
		fraudDecision = reports.Fraud.Decision
	}
	riskScore := 0.0
	if reports.Risk != nil {
		riskScore = reports.Risk.RiskScore
	}
	complianceApproved := true
	if reports.Compliance != nil {
		complianceApproved = reports.Compliance.ComplianceApproved
	}

	switch fraudDecision {
	case contracts.DecisionFraud:
		switch {
		case riskScore > riskEscalationScore:
			return contracts.FinalBlockImmediately
		case !complianceApproved:
			return contracts.FinalEscalateAuthorities
		default:
			return contracts.FinalFraudDetectedMonitor
		}
	case contracts.DecisionCheckRequired:
		return contracts.FinalRequireManualReview
	default:
		return contracts.FinalSafeApproved
	}
}

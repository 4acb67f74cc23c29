package agent

import (
	"context"

	"github.com/finguard-labs/finguard/pkg/capability"
	"github.com/finguard-labs/finguard/pkg/contracts"
	"github.com/finguard-labs/finguard/pkg/session"
)

// MemoryAgent runs the final pipeline stage: consolidating findings and
// sealing the audit trail. It runs for every session, whatever the earlier
// stages concluded.
type MemoryAgent struct {
	Base
}

// NewMemoryAgent builds the finalization agent.
func NewMemoryAgent(deps Deps) *MemoryAgent {
	return &MemoryAgent{Base: newBase(MemoryAgentID, "MemoryAgent", deps)}
}

// Finalize consolidates the session. A failed stage produces a report with
// a FAILED consolidation status.
func (a *MemoryAgent) Finalize(ctx context.Context, ec *session.ExecutionContext) *contracts.MemoryReport {
	a.logger.Info("starting finalization", "session_id", ec.SessionID())

	report, err := a.finalize(ctx, ec)
	if err != nil {
		ec.LogError(a.name, "FINALIZATION_FAILED", err.Error())
		report = &contracts.MemoryReport{
			Agent:               a.name,
			Timestamp:           a.deps.clock().UTC(),
			SessionID:           ec.SessionID(),
			TotalAuditEntries:   len(ec.Trail()),
			BlockedActionsCount: len(ec.BlockedActions()),
			ErrorsCount:         len(ec.Errors()),
			ConsolidationStatus: "FAILED",
			Error:               err.Error(),
		}
	}
	ec.SetMemoryReport(report)
	a.logger.Info("finalization complete", "status", report.ConsolidationStatus)
	return report
}

func (a *MemoryAgent) finalize(ctx context.Context, ec *session.ExecutionContext) (*contracts.MemoryReport, error) {
	plan, err := a.capturePlan(ctx, "Consolidate findings and seal the session audit trail", []capability.PlanStep{
		{Domain: "memory", Action: "consolidate_findings", Purpose: "Consolidate all agent findings"},
		{Domain: "memory", Action: "generate_audit_trail", Purpose: "Generate complete audit trail"},
	})
	if err != nil {
		return nil, err
	}
	token, err := a.requestToken(ctx, plan)
	if err != nil {
		return nil, err
	}

	if _, err := a.invokeAction(ctx, ec, token, "memory", "consolidate_findings", "CONSOLIDATION",
		map[string]any{
			"reports":         reportsAsMap(ec.Reports()),
			"blocked_actions": ec.BlockedActions(),
		},
		func(result map[string]any) map[string]any {
			return map[string]any{"summary": "All findings consolidated"}
		}); err != nil {
		return nil, err
	}

	trail := ec.Trail()
	errs := ec.Errors()
	if _, err := a.invokeAction(ctx, ec, token, "memory", "generate_audit_trail", "AUDIT_TRAIL_GENERATION",
		map[string]any{
			"session_id": ec.SessionID(),
			"audit_log":  trail,
			"errors":     errs,
		},
		func(result map[string]any) map[string]any {
			return map[string]any{
				"audit_log_entries": len(trail),
				"error_count":       len(errs),
			}
		}); err != nil {
		return nil, err
	}

	return &contracts.MemoryReport{
		Agent:               a.name,
		Timestamp:           a.deps.clock().UTC(),
		SessionID:           ec.SessionID(),
		TotalAuditEntries:   len(ec.Trail()),
		BlockedActionsCount: len(ec.BlockedActions()),
		ErrorsCount:         len(ec.Errors()),
		ConsolidationStatus: "SUCCESS",
	}, nil
}

// reportsAsMap renders the report slots under their wire keys, skipping
// stages that never ran.
func reportsAsMap(reports contracts.AgentReports) map[string]any {
	out := make(map[string]any)
	if reports.Fraud != nil {
		out["fraud_agent"] = reports.Fraud
	}
	if reports.Risk != nil {
		out["risk_agent"] = reports.Risk
	}
	if reports.Compliance != nil {
		out["compliance_agent"] = reports.Compliance
	}
	if reports.Memory != nil {
		out["memory_agent"] = reports.Memory
	}
	return out
}

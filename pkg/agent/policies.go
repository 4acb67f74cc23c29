package agent

import "github.com/finguard-labs/finguard/pkg/capability"

// Agent identities.
const (
	FraudAgentID      = "fraud_agent"
	RiskAgentID       = "risk_agent"
	ComplianceAgentID = "compliance_agent"
	MemoryAgentID     = "memory_agent"
)

// DefaultPolicies returns the capability policies for the four pipeline
// agents. Each agent is confined to its own gateway domain and explicitly
// denied the others.
func DefaultPolicies() map[string]capability.Policy {
	return map[string]capability.Policy{
		FraudAgentID: {
			Allow: []string{"fraud/*"},
			Deny:  []string{"risk/*", "compliance/*", "memory/*"},
		},
		RiskAgentID: {
			Allow: []string{"risk/*"},
			Deny:  []string{"fraud/*", "compliance/*", "memory/*"},
		},
		ComplianceAgentID: {
			Allow: []string{"compliance/*"},
			Deny:  []string{"fraud/*", "risk/*", "memory/*"},
		},
		MemoryAgentID: {
			Allow: []string{"memory/*"},
			Deny:  []string{"fraud/*", "risk/*", "compliance/*"},
		},
	}
}

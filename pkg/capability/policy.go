// Package capability implements the plan, token, and delegation protocol the
// pipeline agents use before touching the action gateway. An agent first
// captures a plan describing the actions it intends to take, then requests a
// scoped intent token for that plan, and may delegate a subset of its scope
// to another agent. Policies decide what each agent may plan at all.
package capability

import "path"

// Policy bounds what a single agent may request. Allow and Deny hold
// "domain/action" patterns matched with path.Match semantics, so "fraud/*"
// covers every action in the fraud domain. Deny always wins over Allow.
// Conditions hold optional CEL expressions over the captured plan that must
// all evaluate to true before a token is issued.
type Policy struct {
	Allow      []string `json:"allow"`
	Deny       []string `json:"deny,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}

// Permits reports whether the policy allows the given domain/action pair.
func (p Policy) Permits(domain, action string) bool {
	target := domain + "/" + action
	for _, pattern := range p.Deny {
		if ok, err := path.Match(pattern, target); err == nil && ok {
			return false
		}
	}
	for _, pattern := range p.Allow {
		if ok, err := path.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

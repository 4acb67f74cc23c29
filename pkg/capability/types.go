package capability

import "time"

// PlanStep names one action the agent intends to invoke.
type PlanStep struct {
	Domain  string `json:"domain"`
	Action  string `json:"action"`
	Purpose string `json:"purpose,omitempty"`
}

// PlanCapture is an agent's recorded intent: the goal it is pursuing and the
// concrete steps it expects to take. Tokens are only issued against a
// captured plan.
type PlanCapture struct {
	ID         string            `json:"id"`
	Agent      string            `json:"agent"`
	Goal       string            `json:"goal"`
	Steps      []PlanStep        `json:"steps"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
}

// IntentToken authorizes the actions listed in Scopes (concrete
// "domain/action" pairs) until ExpiresAt. Signed carries the JWT form and is
// never serialized with the token record.
type IntentToken struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	Agent     string    `json:"agent"`
	Scopes    []string  `json:"scopes"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Signed string `json:"-"`
}

// Covers reports whether the token's scope list includes the given
// domain/action pair.
func (t *IntentToken) Covers(domain, action string) bool {
	target := domain + "/" + action
	for _, scope := range t.Scopes {
		if scope == target {
			return true
		}
	}
	return false
}

// DelegationGrant hands a subset of a token's scope to another agent. Grants
// are shorter-lived than the tokens they derive from.
type DelegationGrant struct {
	ID             string    `json:"id"`
	ParentTokenID  string    `json:"parent_token_id"`
	FromAgent      string    `json:"from_agent"`
	ToAgent        string    `json:"to_agent"`
	AllowedActions []string  `json:"allowed_actions"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`

	Signed string `json:"-"`
}

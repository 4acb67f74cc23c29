package capability

import "fmt"

// PlanCaptureError reports a rejected plan capture.
type PlanCaptureError struct {
	Agent  string
	Reason string
	Err    error
}

func (e *PlanCaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plan capture rejected for %s: %s: %v", e.Agent, e.Reason, e.Err)
	}
	return fmt.Sprintf("plan capture rejected for %s: %s", e.Agent, e.Reason)
}

func (e *PlanCaptureError) Unwrap() error { return e.Err }

// TokenIssuanceError reports a refused intent token.
type TokenIssuanceError struct {
	Agent  string
	Reason string
	Err    error
}

func (e *TokenIssuanceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refused for %s: %s: %v", e.Agent, e.Reason, e.Err)
	}
	return fmt.Sprintf("token refused for %s: %s", e.Agent, e.Reason)
}

func (e *TokenIssuanceError) Unwrap() error { return e.Err }

// DelegationError reports a refused delegation grant.
type DelegationError struct {
	FromAgent string
	ToAgent   string
	Reason    string
	Err       error
}

func (e *DelegationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delegation from %s to %s refused: %s: %v", e.FromAgent, e.ToAgent, e.Reason, e.Err)
	}
	return fmt.Sprintf("delegation from %s to %s refused: %s", e.FromAgent, e.ToAgent, e.Reason)
}

func (e *DelegationError) Unwrap() error { return e.Err }

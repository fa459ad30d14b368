package payload

// Known values of the upstream "raison" field.
const (
	ReasonPerMinute = "Limite par minute dépassée"
	ReasonDaily     = "Limite journalière dépassée"
)

// RateLimit carries the optional details of a rate-limited response.
type RateLimit struct {
	Reason   string
	WaitTime string
	Details  map[string]any
	// WorkflowError is set when the upstream reported its generic
	// "Error in workflow" message. Treating that as a limit is a heuristic.
	WorkflowError bool
}

// Title is the headline shown for the limit.
func (r RateLimit) Title() string {
	switch r.Reason {
	case ReasonPerMinute:
		return "Limite de recherche par minute dépassée"
	case ReasonDaily:
		return "Limite journalière dépassée"
	}
	return "Limite de recherche dépassée"
}

// RetryMessage is the retry hint, empty when no wait time was given.
func (r RateLimit) RetryMessage() string {
	if r.WaitTime == "" {
		return ""
	}
	return "Réessayez dans " + r.WaitTime
}

func rateLimitFrom(obj map[string]any) RateLimit {
	var rl RateLimit
	if obj == nil {
		return rl
	}
	rl.Reason, _ = obj["raison"].(string)
	rl.WaitTime, _ = obj["wait_time_friendly"].(string)
	rl.Details, _ = obj["details"].(map[string]any)
	if m, _ := obj["message"].(string); m == workflowErrorMessage {
		rl.WorkflowError = true
	}
	return rl
}

package types

// RetrievalContext carries the caller's situation through the ranking funnel.
// Scenario selects the multi-signal weight table; Intent is consulted when
// Scenario is empty. Unknown scenario names resolve to the default table.
type RetrievalContext struct {
	Scenario       string   `json:"scenario,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	Language       string   `json:"language,omitempty"`
	UserLevel      string   `json:"userLevel,omitempty"`
	SessionHistory []string `json:"sessionHistory,omitempty"`
}

// EffectiveScenario returns Scenario, falling back to Intent.
func (rc *RetrievalContext) EffectiveScenario() string {
	if rc == nil {
		return ""
	}
	if rc.Scenario != "" {
		return rc.Scenario
	}
	return rc.Intent
}

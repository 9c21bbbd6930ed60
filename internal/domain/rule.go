package domain

// RuleConfig defines a custom advisory screening rule.
// The expression is CEL over the facts of a finished analysis
// (score, evidence counts, predatory flag, metadata presence).
// Advisory rules annotate results; they never change the score,
// risk tier, or the engine's own rules_triggered list.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression; must evaluate to bool
	Expression string `json:"expression"`

	// Severity of the advisory when the rule fires
	Severity string `json:"severity"`

	Enabled bool `json:"enabled"`
}

// Advisory severities.
const (
	SeverityInfo     = "info"
	SeverityWarn     = "warn"
	SeverityCritical = "critical"
)

// Advisory is emitted when an advisory rule fires against an analysis.
type Advisory struct {
	RuleID   string `json:"ruleId"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

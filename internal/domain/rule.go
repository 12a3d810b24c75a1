package domain

// FlagRule defines an operator-configured annotation rule. The CEL
// expression is evaluated against a measurement and its scored outcome;
// when it yields true the rule's tag is attached to the audit.
type FlagRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression, must return bool
	Expression string `json:"expression"`

	// Tag is the display annotation attached when the rule matches.
	Tag string `json:"tag"`

	// Severity is one of the FlagSeverity* constants.
	Severity string `json:"severity"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// Flag severities.
const (
	FlagSeverityInfo  = "info"
	FlagSeverityWarn  = "warn"
	FlagSeverityAlert = "alert"
)

// FlagResult is the output of a flag-rule evaluation.
type FlagResult struct {
	RuleID    string `json:"ruleId"`
	Matched   bool   `json:"matched"`
	Tag       string `json:"tag,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Err       string `json:"error,omitempty"`
	ProcessMs int64  `json:"processMs,omitempty"`
}

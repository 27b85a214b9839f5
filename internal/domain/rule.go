package domain

// UnderwritingRule is a tenant-configurable referral rule layered on top of
// the built-in decision triggers. The expression is CEL and must evaluate
// to a boolean; when it fires, Reason is appended to the referral reasons.
type UnderwritingRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression evaluated against the quote context.
	Expression string `json:"expression"`

	// Reason is the human-readable referral reason emitted when the
	// expression evaluates to true.
	Reason string `json:"reason"`

	// Whether the rule is active.
	Enabled bool `json:"enabled"`
}

package validate

import (
	"fmt"
	"regexp"
)

// Rule is one static bypass-shape detector. Pattern is applied to the query
// with string literals and comments masked out unless RawText is set, in
// which case it runs over the original text and may reject literals too.
// Rejecting a literal is the safe direction here.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string `koanf:"id"`

	// Description explains what this rule rejects.
	Description string `koanf:"description"`

	// Pattern is the regex applied to the query.
	Pattern string `koanf:"pattern"`

	// Severity indicates the importance (high, medium, low).
	Severity string `koanf:"severity"`

	// RawText applies the pattern to the unmasked query.
	RawText bool `koanf:"raw_text"`

	// CrossTenantExempt skips the rule for contexts holding the
	// cross-tenant grant.
	CrossTenantExempt bool `koanf:"cross_tenant_exempt"`
}

// DefaultRules returns the default bypass detectors for the given tenant
// property name (for example "tenant_id").
func DefaultRules(tenantKey string) []Rule {
	key := regexp.QuoteMeta(tenantKey)
	return []Rule{
		{
			ID:          "multi-statement",
			Description: "Multiple statements in one query",
			Pattern:     `;`,
			Severity:    "high",
		},
		{
			ID:          "union-clause",
			Description: "UNION can splice an unscoped result set onto a scoped one",
			Pattern:     `(?i)\bUNION\b`,
			Severity:    "high",
		},
		{
			ID:          "string-concatenation",
			Description: "String concatenation adjacent to a literal suggests query assembly",
			Pattern:     `(['"` + "`" + `]\s*\+)|(\+\s*['"` + "`" + `])`,
			Severity:    "high",
			RawText:     true,
		},
		{
			ID:                "admin-procedure",
			Description:       "Direct db./dbms./apoc. procedure calls bypass pattern rewriting",
			Pattern:           `(?i)\bCALL\s+(db|dbms|apoc)\s*\.`,
			Severity:          "high",
			CrossTenantExempt: true,
		},
		{
			ID:          "load-csv",
			Description: "LOAD CSV ingests data outside tenant scoping",
			Pattern:     `(?i)\bLOAD\s+CSV\b`,
			Severity:    "high",
		},
		{
			ID:          "tenant-property-set",
			Description: "SET on the tenant property would reassign ownership",
			Pattern:     `(?i)\bSET\s+[\w.]*\.` + key + `\b`,
			Severity:    "high",
		},
		{
			ID:          "tenant-property-set-map",
			Description: "Map assignment writing the tenant property",
			Pattern:     `(?i)\bSET\s+\w+\s*\+?=\s*\{[^{}]*\b` + key + `\s*:`,
			Severity:    "high",
		},
		{
			ID:          "tenant-property-remove",
			Description: "REMOVE on the tenant property would strip isolation",
			Pattern:     `(?i)\bREMOVE\s+[\w.]*\.` + key + `\b`,
			Severity:    "high",
		},
		{
			ID:          "tenant-property-quoted-key",
			Description: "Quoted or backquoted tenant property key hides a write from the rewriter",
			Pattern:     "[`'\"]" + key + "[`'\"]\\s*:",
			Severity:    "high",
			RawText:     true,
		},
	}
}

// Validate checks a rule definition is complete.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has no id")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule %s has no pattern", r.ID)
	}
	return nil
}

// Package validate statically screens queries for shapes that would defeat
// tenant predicate injection. The validator runs before the rewriter and is
// deliberately blunt: a query that merely looks like a bypass is rejected.
// Under-filtering is a data leak, over-filtering is a support ticket.
package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/halcyondata/graphgate/internal/rewrite"
	"github.com/halcyondata/graphgate/internal/tenant"
)

// ErrSecurityViolation is returned when a query matches a bypass rule.
var ErrSecurityViolation = errors.New("security violation")

// Decision values recorded on verdicts and audit events.
const (
	DecisionAllow  = "allow"
	DecisionReject = "reject"
)

// Verdict is the outcome of screening one query.
type Verdict struct {
	// Decision is DecisionAllow or DecisionReject.
	Decision string `json:"decision"`

	// RuleID identifies the matched rule on rejection.
	RuleID string `json:"rule_id,omitempty"`

	// Reason explains the rejection.
	Reason string `json:"reason,omitempty"`

	// Severity of the matched rule.
	Severity string `json:"severity,omitempty"`

	// Fingerprint is a truncated SHA-256 of the query text, safe to log
	// and join against audit records without storing the query itself.
	Fingerprint string `json:"fingerprint"`

	// Duration is how long screening took.
	Duration time.Duration `json:"duration"`
}

// Allowed reports whether the query may proceed to rewriting.
func (v *Verdict) Allowed() bool {
	return v.Decision == DecisionAllow
}

type compiledRule struct {
	Rule
	pattern *regexp.Regexp
}

// Validator screens queries against a compiled rule set.
type Validator struct {
	rules     []compiledRule
	tenantKey string
}

// New compiles the given rules. Pass DefaultRules(tenantKey) for the
// standard set; tenantKey is also used to screen parameter values and
// defaults to the rewriter's.
func New(tenantKey string, rules []Rule) (*Validator, error) {
	if tenantKey == "" {
		tenantKey = rewrite.DefaultTenantKey
	}
	v := &Validator{rules: make([]compiledRule, 0, len(rules)), tenantKey: tenantKey}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		p, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", r.ID, err)
		}
		v.rules = append(v.rules, compiledRule{Rule: r, pattern: p})
	}
	return v, nil
}

// MustNew compiles the rules, panicking on error. For static rule sets.
func MustNew(tenantKey string, rules []Rule) *Validator {
	v, err := New(tenantKey, rules)
	if err != nil {
		panic(err)
	}
	return v
}

// setParamAssign matches whole-entity assignment from a parameter,
// SET n = $p or SET n += $p, whose content the text rules cannot see.
var setParamAssign = regexp.MustCompile(`(?i)\bSET\s+\w+\s*\+?=\s*\$(\w+)`)

// ParamSetRuleID is the synthetic rule identifier for parameter values that
// would write the tenant property through a SET.
const ParamSetRuleID = "tenant-property-param-set"

// Check screens the query and its parameters for the given tenant context.
// It never returns an allow verdict together with an error; a rejection
// carries both the verdict detail and ErrSecurityViolation.
func (v *Validator) Check(tctx *tenant.Context, query string, params map[string]any) (*Verdict, error) {
	start := time.Now()
	verdict := &Verdict{
		Decision:    DecisionAllow,
		Fingerprint: Fingerprint(query),
	}

	if tctx == nil {
		verdict.Decision = DecisionReject
		verdict.Reason = "missing tenant context"
		verdict.Duration = time.Since(start)
		return verdict, fmt.Errorf("%w: missing tenant context", ErrSecurityViolation)
	}

	masked := rewrite.MaskLiterals(query)
	for _, r := range v.rules {
		if r.CrossTenantExempt && tctx.CrossTenant {
			continue
		}
		text := masked
		if r.RawText {
			text = query
		}
		if r.pattern.MatchString(text) {
			verdict.Decision = DecisionReject
			verdict.RuleID = r.ID
			verdict.Reason = r.Description
			verdict.Severity = r.Severity
			verdict.Duration = time.Since(start)
			return verdict, fmt.Errorf("%w: %s", ErrSecurityViolation, r.Description)
		}
	}

	for _, m := range setParamAssign.FindAllStringSubmatch(masked, -1) {
		if carriesKey(params[m[1]], v.tenantKey) {
			verdict.Decision = DecisionReject
			verdict.RuleID = ParamSetRuleID
			verdict.Reason = "parameter assigned by SET carries the tenant property"
			verdict.Severity = "high"
			verdict.Duration = time.Since(start)
			return verdict, fmt.Errorf("%w: %s", ErrSecurityViolation, verdict.Reason)
		}
	}

	verdict.Duration = time.Since(start)
	return verdict, nil
}

// carriesKey walks a parameter value looking for the tenant key in any map,
// at any depth.
func carriesKey(value any, key string) bool {
	switch t := value.(type) {
	case map[string]any:
		for k, v := range t {
			if k == key || carriesKey(v, key) {
				return true
			}
		}
	case []any:
		for _, v := range t {
			if carriesKey(v, key) {
				return true
			}
		}
	}
	return false
}

// Fingerprint returns the first 16 hex characters of the SHA-256 of the
// query text.
func Fingerprint(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])[:16]
}

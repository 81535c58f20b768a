// Package rewrite transforms raw graph query text so that every read and
// write of tenant-scoped data carries a tenant predicate bound to the
// current tenant context. The transformation is a lexical clause
// segmentation plus node-pattern scanning, not a full grammar parse;
// anything it cannot read statically is rejected rather than under-filtered.
package rewrite

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/halcyondata/graphgate/internal/tenant"
)

// DefaultTenantKey is the property carrying the tenant identifier on every
// tenant-scoped node and relationship.
const DefaultTenantKey = "tenant_id"

// DefaultParamName is the base name of the generated tenant parameter.
const DefaultParamName = "gg_tenant_id"

// maxParamAttempts bounds uniquification of the generated parameter name.
const maxParamAttempts = 8

// Config declares which labels and relationship types are tenant-scoped.
// The label set is configuration, never hard-coded per query.
type Config struct {
	// Labels are the tenant-scoped node labels.
	Labels []string

	// RelationshipTypes are the tenant-scoped relationship types.
	// They are enforced at creation time (property injection) and, when
	// the pattern names an alias, filtered on reads.
	RelationshipTypes []string

	// TenantKey is the tenant property name. Defaults to DefaultTenantKey.
	TenantKey string

	// ParamName is the base name for the generated parameter.
	// Defaults to DefaultParamName.
	ParamName string
}

// Rewriter injects tenant predicates into graph queries.
// It is stateless and safe for concurrent use; each Rewrite call owns all
// of its working data.
type Rewriter struct {
	labels    map[string]struct{}
	relTypes  map[string]struct{}
	key       string
	paramBase string

	// scopedRef matches ":Label" for any tenant-scoped label or type.
	// Used to fail closed on scoped references outside rewritable clauses
	// (pattern comprehensions in RETURN, label tests in WHERE).
	scopedRef *regexp.Regexp
}

// FilteredAlias is one (alias, label) pair that carries a tenant predicate
// or tenant property in the rewritten query.
type FilteredAlias struct {
	Alias string
	Label string
}

// Result is the outcome of one rewrite call.
type Result struct {
	// Query is the rewritten query text.
	Query string

	// Params is the augmented parameter map. The caller's map is copied,
	// never mutated.
	Params map[string]any

	// Filtered lists the (alias, label) pairs confirmed to carry the
	// tenant predicate, in source appearance order.
	Filtered []FilteredAlias

	// Param is the name of the tenant parameter bound in Params, or ""
	// when the query references no tenant-scoped pattern.
	Param string
}

// New creates a Rewriter for the given tenant-scope configuration.
func New(cfg Config) *Rewriter {
	r := &Rewriter{
		labels:    make(map[string]struct{}, len(cfg.Labels)),
		relTypes:  make(map[string]struct{}, len(cfg.RelationshipTypes)),
		key:       cfg.TenantKey,
		paramBase: cfg.ParamName,
	}
	for _, l := range cfg.Labels {
		r.labels[l] = struct{}{}
	}
	for _, t := range cfg.RelationshipTypes {
		r.relTypes[t] = struct{}{}
	}
	if r.key == "" {
		r.key = DefaultTenantKey
	}
	if r.paramBase == "" {
		r.paramBase = DefaultParamName
	}
	names := make([]string, 0, len(r.labels)+len(r.relTypes))
	for l := range r.labels {
		names = append(names, regexp.QuoteMeta(l))
	}
	for t := range r.relTypes {
		names = append(names, regexp.QuoteMeta(t))
	}
	if len(names) > 0 {
		sort.Strings(names)
		r.scopedRef = regexp.MustCompile(`:\s*(` + strings.Join(names, "|") + `)\b`)
	}
	return r
}

// subqueryExpr matches EXISTS/COUNT/CALL brace subqueries.
var subqueryExpr = regexp.MustCompile(`(?i)\b(EXISTS|COUNT|CALL)\s*\{`)

// edit is one pending insertion into the original query text.
type edit struct {
	pos  int
	text string
}

// rewriteState is the working data for a single Rewrite call.
type rewriteState struct {
	tenantID string
	masked   string
	query    string
	param    string
	edits    []edit
	filtered []FilteredAlias
	seen     map[string]bool // alias -> predicate present (current scope)
	bindings map[string][]string
	injected bool
}

// Rewrite transforms raw query text and a parameter map so that invariant
// holds: every alias of a tenant-scoped label carries a tenant predicate
// equality-bound to tctx's identifier, and every created tenant-scoped
// node/relationship carries the tenant property. The generated parameter
// value comes exclusively from tctx - caller-supplied parameters never
// influence the filter.
func (r *Rewriter) Rewrite(tctx *tenant.Context, query string, params map[string]any) (*Result, error) {
	if tctx == nil {
		return nil, tenant.ErrMissingContext
	}
	if err := tctx.Validate(); err != nil {
		return nil, err
	}

	st := &rewriteState{
		tenantID: tctx.TenantID,
		masked:   MaskLiterals(query),
		query:    query,
		seen:     make(map[string]bool),
		bindings: make(map[string][]string),
	}

	name, err := r.resolveParamName(params, tctx.TenantID)
	if err != nil {
		return nil, err
	}
	st.param = name

	// Brace subqueries embed clauses the flat segmentation would attribute
	// to the wrong scope; a synthesized WHERE could land outside the braces.
	if subqueryExpr.MatchString(st.masked) {
		return nil, fmt.Errorf("%w: brace subquery expressions are not supported", ErrUnrewritable)
	}

	segs := segmentQuery(st.masked)
	for _, seg := range segs {
		switch seg.Kind {
		case KindMatch, KindOptionalMatch, KindCreate, KindMerge:
		default:
			// Tenant-scoped labels are only rewritable inside pattern
			// clauses. A scoped reference anywhere else (pattern
			// comprehension, inline label test, procedure argument)
			// cannot be filtered statically, so it is rejected.
			if r.scopedRef != nil && r.scopedRef.MatchString(st.masked[seg.Start:seg.End]) {
				return nil, fmt.Errorf("%w: tenant-scoped label referenced outside a pattern clause (%s)", ErrUnrewritable, seg.Kind)
			}
		}
	}
	for i, seg := range segs {
		switch seg.Kind {
		case KindWith, KindUnion:
			// New scope: aliases must restate labels to stay rewritable.
			st.bindings = make(map[string][]string)
			st.seen = make(map[string]bool)
		case KindMatch, KindOptionalMatch:
			var next *Segment
			if i+1 < len(segs) && segs[i+1].Kind == KindWhere {
				next = &segs[i+1]
			}
			if err := r.rewriteMatch(st, seg, next, params); err != nil {
				return nil, err
			}
		case KindCreate, KindMerge:
			if err := r.rewriteCreate(st, seg, params); err != nil {
				return nil, err
			}
		}
	}

	out := &Result{
		Query:    applyEdits(query, st.edits),
		Params:   make(map[string]any, len(params)+1),
		Filtered: dedupeFiltered(st.filtered),
	}
	for k, v := range params {
		out.Params[k] = v
	}
	if st.injected || len(out.Filtered) > 0 {
		out.Param = st.param
	}
	if st.injected {
		out.Params[st.param] = tctx.TenantID
	}
	return out, nil
}

// resolveParamName picks a parameter name that cannot be influenced by the
// caller. An existing entry is reused only when it already carries this
// exact tenant identifier (the idempotent re-rewrite case); any other
// collision forces a uniquified name.
func (r *Rewriter) resolveParamName(params map[string]any, tenantID string) (string, error) {
	if v, ok := params[r.paramBase]; ok {
		if s, isStr := v.(string); isStr && s == tenantID {
			return r.paramBase, nil
		}
	} else {
		return r.paramBase, nil
	}
	for n := 1; n <= maxParamAttempts; n++ {
		candidate := fmt.Sprintf("%s_%d", r.paramBase, n)
		if v, ok := params[candidate]; !ok {
			return candidate, nil
		} else if s, isStr := v.(string); isStr && s == tenantID {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q and %d fallbacks are taken", ErrParameterCollision, r.paramBase, maxParamAttempts)
}

// tenantScopedLabel returns the first tenant-scoped label bound to the node,
// or "" when none is.
func (r *Rewriter) tenantScopedLabel(labels []string) string {
	for _, l := range labels {
		if _, ok := r.labels[l]; ok {
			return l
		}
	}
	return ""
}

func (r *Rewriter) tenantScopedType(types []string) string {
	for _, t := range types {
		if _, ok := r.relTypes[t]; ok {
			return t
		}
	}
	return ""
}

// rewriteMatch handles one MATCH/OPTIONAL MATCH segment: every candidate
// alias gets a tenant predicate in the nearest following WHERE, or a
// synthesized WHERE when none exists.
func (r *Rewriter) rewriteMatch(st *rewriteState, seg Segment, where *Segment, params map[string]any) error {
	scan, err := scanPatterns(st.masked, seg.KeywordEnd, seg.End)
	if err != nil {
		return err
	}

	// Predicates already bound conjunctively in the attached WHERE count as
	// injected (idempotent re-rewrite). OR-embedded occurrences do not.
	already := map[string]bool{}
	if where != nil {
		already = r.conjunctivePredicates(st, *where, params)
	}

	var preds []string
	for _, node := range scan.Nodes {
		if len(node.Labels) == 0 {
			if node.Alias == "" {
				continue // anonymous unlabeled node binds nothing
			}
			if _, bound := st.bindings[node.Alias]; bound {
				continue // bare reuse of an alias labeled earlier in scope
			}
			return fmt.Errorf("%w: alias %q has no statically determinable label", ErrUnrewritable, node.Alias)
		}
		st.bindings[node.Alias] = node.Labels
		label := r.tenantScopedLabel(node.Labels)
		if label == "" {
			continue
		}
		if node.Alias == "" {
			return fmt.Errorf("%w: anonymous node with tenant-scoped label %s must be aliased", ErrUnrewritable, label)
		}
		st.filtered = append(st.filtered, FilteredAlias{Alias: node.Alias, Label: label})
		if st.seen[node.Alias] || already[node.Alias] {
			st.seen[node.Alias] = true
			continue
		}
		st.seen[node.Alias] = true
		preds = append(preds, fmt.Sprintf("%s.%s = $%s", node.Alias, r.key, st.param))
	}

	for _, rel := range scan.Rels {
		if rel.VarLen {
			return fmt.Errorf("%w: variable-length relationship patterns are not supported", ErrUnrewritable)
		}
		typ := r.tenantScopedType(rel.Types)
		if typ == "" {
			continue
		}
		if rel.Alias == "" {
			// An anonymous tenant-scoped relationship stays scoped only
			// when a directly attached endpoint carries the predicate;
			// between anonymous endpoints it would match every tenant.
			if !endpointFiltered(st, already, scan, rel) {
				return fmt.Errorf("%w: anonymous %s relationship has no filtered endpoint", ErrUnrewritable, typ)
			}
			continue
		}
		st.filtered = append(st.filtered, FilteredAlias{Alias: rel.Alias, Label: typ})
		if st.seen[rel.Alias] || already[rel.Alias] {
			st.seen[rel.Alias] = true
			continue
		}
		st.seen[rel.Alias] = true
		preds = append(preds, fmt.Sprintf("%s.%s = $%s", rel.Alias, r.key, st.param))
	}

	if len(preds) == 0 {
		return nil
	}
	st.injected = true

	joined := strings.Join(preds, " AND ")
	if where != nil {
		bodyStart := skipSpace(st.masked, where.KeywordEnd)
		bodyEnd := lastNonSpace(st.query, where.KeywordEnd, where.End)
		if r.hasTopLevelOr(st.masked[bodyStart:bodyEnd]) {
			// Parenthesize the caller's disjunction so AND binds the whole
			// clause; the original predicate text is preserved verbatim.
			st.edits = append(st.edits,
				edit{pos: bodyStart, text: "("},
				edit{pos: bodyEnd, text: ") AND " + joined})
		} else {
			st.edits = append(st.edits, edit{pos: bodyEnd, text: " AND " + joined})
		}
	} else {
		pos := lastNonSpace(st.query, seg.KeywordEnd, seg.End)
		st.edits = append(st.edits, edit{pos: pos, text: " WHERE " + joined})
	}
	return nil
}

// endpointFiltered reports whether a node pattern directly attached to the
// relationship (only dash/arrow glue between the spans) has an alias that
// already carries the tenant predicate.
func endpointFiltered(st *rewriteState, already map[string]bool, scan *patternScan, rel relPattern) bool {
	for _, node := range scan.Nodes {
		var adjacent bool
		switch {
		case node.End <= rel.Start:
			adjacent = onlyLinkBytes(st.masked[node.End:rel.Start])
		case node.Start >= rel.End:
			adjacent = onlyLinkBytes(st.masked[rel.End:node.Start])
		}
		if !adjacent || node.Alias == "" {
			continue
		}
		if st.seen[node.Alias] || already[node.Alias] {
			return true
		}
	}
	return false
}

// onlyLinkBytes reports whether the span is pure relationship glue.
func onlyLinkBytes(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '-', '<', '>', ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

// predicateForm matches "alias.key = $param" as a whole conjunct.
var predicateForm = regexp.MustCompile(`^(\w+)\.(\w+)\s*=\s*\$(\w+)$`)

// conjunctivePredicates returns the aliases whose tenant predicate already
// appears as a top-level conjunct of the WHERE body, bound to a parameter
// carrying this exact tenant identifier.
func (r *Rewriter) conjunctivePredicates(st *rewriteState, where Segment, params map[string]any) map[string]bool {
	body := st.masked[where.KeywordEnd:where.End]
	out := make(map[string]bool)
	for _, conjunct := range splitTopLevelAnd(body) {
		m := predicateForm.FindStringSubmatch(strings.TrimSpace(conjunct))
		if m == nil || m[2] != r.key {
			continue
		}
		if v, ok := params[m[3]]; ok {
			if s, isStr := v.(string); isStr && s == st.tenantID {
				out[m[1]] = true
			}
		}
	}
	return out
}

// splitTopLevelAnd splits a WHERE body on AND tokens outside any nesting.
func splitTopLevelAnd(body string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case 'A', 'a':
			if depth != 0 || i+3 > len(body) {
				continue
			}
			if !strings.EqualFold(body[i:i+3], "AND") {
				continue
			}
			if i > 0 && isIdentByte(body[i-1]) {
				continue
			}
			if i+3 < len(body) && isIdentByte(body[i+3]) {
				continue
			}
			parts = append(parts, body[start:i])
			start = i + 3
			i += 2
		}
	}
	parts = append(parts, body[start:])
	return parts
}

// hasTopLevelOr reports whether the WHERE body contains a top-level OR/XOR.
func (r *Rewriter) hasTopLevelOr(body string) bool {
	depth := 0
	for i := 0; i < len(body); i++ {
		switch c := body[i]; c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if depth != 0 {
				continue
			}
			var kw string
			if c == 'O' || c == 'o' {
				kw = "OR"
			} else if c == 'X' || c == 'x' {
				kw = "XOR"
			} else {
				continue
			}
			if i+len(kw) > len(body) || !strings.EqualFold(body[i:i+len(kw)], kw) {
				continue
			}
			if i > 0 && isIdentByte(body[i-1]) {
				continue
			}
			if i+len(kw) < len(body) && isIdentByte(body[i+len(kw)]) {
				continue
			}
			return true
		}
	}
	return false
}

// rewriteCreate handles one CREATE/MERGE segment: the tenant property is
// written into the inline property map of every tenant-scoped pattern, so
// the identifier becomes immutable data rather than a filter.
func (r *Rewriter) rewriteCreate(st *rewriteState, seg Segment, params map[string]any) error {
	scan, err := scanPatterns(st.masked, seg.KeywordEnd, seg.End)
	if err != nil {
		return err
	}

	for _, node := range scan.Nodes {
		if node.Alias != "" {
			st.bindings[node.Alias] = node.Labels
		}
		if len(node.Labels) == 0 {
			// Label-less create binds a non-scoped node; reused aliases
			// refer to nodes already handled where they were introduced.
			continue
		}
		label := r.tenantScopedLabel(node.Labels)
		if label == "" {
			continue
		}
		done, err := r.injectProperty(st, node.MapStart, node.MapEnd, node.End, params)
		if err != nil {
			return fmt.Errorf("%w (label %s)", err, label)
		}
		st.filtered = append(st.filtered, FilteredAlias{Alias: node.Alias, Label: label})
		if node.Alias != "" {
			st.seen[node.Alias] = true
		}
		if done {
			st.injected = true
		}
	}

	for _, rel := range scan.Rels {
		if rel.VarLen {
			return fmt.Errorf("%w: variable-length relationship patterns are not supported", ErrUnrewritable)
		}
		typ := r.tenantScopedType(rel.Types)
		if typ == "" {
			continue
		}
		if len(rel.Types) > 1 {
			return fmt.Errorf("%w: tenant-scoped relationship created with a type alternation", ErrUnrewritable)
		}
		done, err := r.injectProperty(st, rel.MapStart, rel.MapEnd, rel.End, params)
		if err != nil {
			return fmt.Errorf("%w (type %s)", err, typ)
		}
		st.filtered = append(st.filtered, FilteredAlias{Alias: rel.Alias, Label: typ})
		if rel.Alias != "" {
			st.seen[rel.Alias] = true
		}
		if done {
			st.injected = true
		}
	}
	return nil
}

// injectProperty adds "key: $param" to the inline property map spanning
// [mapStart, mapEnd), creating the map before patternEnd-1 when absent.
// Returns false without error when the property is already bound to this
// tenant (idempotent re-rewrite).
func (r *Rewriter) injectProperty(st *rewriteState, mapStart, mapEnd, patternEnd int, params map[string]any) (bool, error) {
	if mapStart < 0 {
		pos := lastNonSpace(st.query, 0, patternEnd-1)
		st.edits = append(st.edits, edit{pos: pos, text: fmt.Sprintf(" {%s: $%s}", r.key, st.param)})
		return true, nil
	}

	valStart, found := findMapKey(st.masked, mapStart, mapEnd, r.key)
	if found {
		// Only the rewriter may set the tenant property. An existing
		// entry is acceptable only when it is already bound to a
		// parameter carrying this exact tenant identifier.
		v := skipSpace(st.masked, valStart)
		if v < mapEnd && st.masked[v] == '$' {
			k := v + 1
			for k < mapEnd && isIdentByte(st.masked[k]) {
				k++
			}
			if p, ok := params[st.masked[v+1:k]]; ok {
				if s, isStr := p.(string); isStr && s == st.tenantID {
					return false, nil
				}
			}
		}
		return false, fmt.Errorf("%w: caller-supplied %s property in create pattern", ErrUnrewritable, r.key)
	}

	bodyEnd := lastNonSpace(st.query, mapStart+1, mapEnd-1)
	if bodyEnd == mapStart+1 {
		st.edits = append(st.edits, edit{pos: bodyEnd, text: fmt.Sprintf("%s: $%s", r.key, st.param)})
	} else {
		st.edits = append(st.edits, edit{pos: bodyEnd, text: fmt.Sprintf(", %s: $%s", r.key, st.param)})
	}
	return true, nil
}

// findMapKey looks for "key:" at the top nesting level of the property map
// body and returns the offset just past the colon.
func findMapKey(masked string, mapStart, mapEnd int, key string) (int, bool) {
	depth := 0
	i := mapStart + 1
	for i < mapEnd-1 {
		switch masked[i] {
		case '{', '[', '(':
			depth++
			i++
		case '}', ']', ')':
			depth--
			i++
		default:
			if depth == 0 && isIdentStart(masked[i]) {
				k := i
				for k < mapEnd-1 && isIdentByte(masked[k]) {
					k++
				}
				ident := masked[i:k]
				j := skipSpace(masked, k)
				if j < mapEnd-1 && masked[j] == ':' && ident == key {
					return j + 1, true
				}
				// Skip this key's value up to the next top-level comma.
				i = k
				for i < mapEnd-1 {
					switch masked[i] {
					case '{', '[', '(':
						i = skipNest(masked, i, mapEnd-1)
					case ',':
						if depth == 0 {
							i++
							goto nextKey
						}
						i++
					default:
						i++
					}
				}
			nextKey:
				continue
			}
			i++
		}
	}
	return 0, false
}

// skipNest returns the offset just past the bracket matching the opener at i.
func skipNest(masked string, i, end int) int {
	depth := 0
	for j := i; j < end; j++ {
		switch masked[j] {
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return end
}

// applyEdits assembles the rewritten text. Insertions are applied in
// position order; equal positions keep their generation order, so repeated
// rewrites of identical input produce byte-identical output.
func applyEdits(query string, edits []edit) string {
	if len(edits) == 0 {
		return query
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].pos < edits[j].pos })
	var b strings.Builder
	b.Grow(len(query) + len(edits)*32)
	prev := 0
	for _, e := range edits {
		b.WriteString(query[prev:e.pos])
		b.WriteString(e.text)
		prev = e.pos
	}
	b.WriteString(query[prev:])
	return b.String()
}

// dedupeFiltered drops repeated (alias, label) pairs, keeping first
// appearance order.
func dedupeFiltered(in []FilteredAlias) []FilteredAlias {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[FilteredAlias]struct{}, len(in))
	out := make([]FilteredAlias, 0, len(in))
	for _, f := range in {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

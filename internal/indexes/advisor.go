// Package indexes advises on the database indexes that keep tenant-filtered
// queries from degrading into label scans. Every scoped label gains an
// equality predicate on the tenant property, so every scoped label needs an
// index with that property as its leading column. The advisor reports and
// generates statements; it never blocks query execution.
package indexes

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ExpectedIndex is one index the advisor wants present.
type ExpectedIndex struct {
	// Label is the node label or relationship type the index covers.
	Label string `json:"label"`

	// Properties are the indexed properties, tenant property first.
	Properties []string `json:"properties"`

	// Relationship marks an index over a relationship type.
	Relationship bool `json:"relationship,omitempty"`
}

// Name returns the deterministic index name used in generated statements.
func (e ExpectedIndex) Name() string {
	parts := append([]string{"gg", strings.ToLower(e.Label)}, e.Properties...)
	return strings.Join(parts, "_")
}

// Statement returns the CREATE INDEX statement for this index.
func (e ExpectedIndex) Statement() string {
	props := make([]string, len(e.Properties))
	for i, p := range e.Properties {
		props[i] = "n." + p
	}
	pattern := fmt.Sprintf("(n:%s)", e.Label)
	if e.Relationship {
		pattern = fmt.Sprintf("()-[n:%s]-()", e.Label)
	}
	return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR %s ON (%s)",
		e.Name(), pattern, strings.Join(props, ", "))
}

// Introspector lists the indexes present in the database. The graph executor
// implements this against SHOW INDEXES.
type Introspector interface {
	// ListIndexes returns (label, properties) pairs for every index.
	ListIndexes(ctx context.Context) ([]ExpectedIndex, error)
}

// Report compares expectation against reality.
type Report struct {
	Present []ExpectedIndex `json:"present"`
	Missing []ExpectedIndex `json:"missing"`
}

// Covered reports whether nothing is missing.
func (r *Report) Covered() bool {
	return len(r.Missing) == 0
}

// Config declares the tenancy shape the advisor plans for.
type Config struct {
	// Labels are the tenant-scoped node labels.
	Labels []string

	// RelationshipTypes are the tenant-scoped relationship types.
	RelationshipTypes []string

	// TenantKey is the tenant property name.
	TenantKey string

	// LookupProperties maps a label to the properties commonly paired with
	// the tenant filter, each yielding a composite index.
	LookupProperties map[string][]string
}

// Advisor computes expected indexes for a tenancy configuration.
type Advisor struct {
	cfg Config
}

// New creates an advisor. An empty TenantKey defaults to "tenant_id".
func New(cfg Config) *Advisor {
	if cfg.TenantKey == "" {
		cfg.TenantKey = "tenant_id"
	}
	return &Advisor{cfg: cfg}
}

// Expected returns the full set of indexes the configuration calls for,
// sorted by name for stable output.
func (a *Advisor) Expected() []ExpectedIndex {
	var out []ExpectedIndex
	for _, label := range a.cfg.Labels {
		out = append(out, ExpectedIndex{Label: label, Properties: []string{a.cfg.TenantKey}})
		for _, prop := range a.cfg.LookupProperties[label] {
			out = append(out, ExpectedIndex{Label: label, Properties: []string{a.cfg.TenantKey, prop}})
		}
	}
	for _, rel := range a.cfg.RelationshipTypes {
		out = append(out, ExpectedIndex{Label: rel, Properties: []string{a.cfg.TenantKey}, Relationship: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Check introspects the database and reports which expected indexes exist.
// Matching is by label and property list; index names are not compared, so
// indexes created by hand still count.
func (a *Advisor) Check(ctx context.Context, intro Introspector) (*Report, error) {
	existing, err := intro.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	have := make(map[string]bool, len(existing))
	for _, idx := range existing {
		have[indexKey(idx)] = true
	}

	report := &Report{}
	for _, want := range a.Expected() {
		if have[indexKey(want)] {
			report.Present = append(report.Present, want)
		} else {
			report.Missing = append(report.Missing, want)
		}
	}
	return report, nil
}

// EnsureStatements returns CREATE INDEX statements for the missing indexes.
func (a *Advisor) EnsureStatements(report *Report) []string {
	out := make([]string, 0, len(report.Missing))
	for _, idx := range report.Missing {
		out = append(out, idx.Statement())
	}
	return out
}

func indexKey(idx ExpectedIndex) string {
	return fmt.Sprintf("%t|%s|%s", idx.Relationship, idx.Label, strings.Join(idx.Properties, ","))
}

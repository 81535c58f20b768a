package rewrite

import "errors"

// Rewriter error types - none of these degrade to an unfiltered query.
var (
	// ErrUnrewritable is returned when a tenant-scoped pattern cannot be
	// safely rewritten (ambiguous label binding, unsupported shape).
	// Callers must restate labels explicitly to be rewritable.
	ErrUnrewritable = errors.New("query cannot be safely rewritten")

	// ErrParameterCollision is returned when no non-colliding name can be
	// generated for the tenant parameter.
	ErrParameterCollision = errors.New("tenant parameter name collision")
)

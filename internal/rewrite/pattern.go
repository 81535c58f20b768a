package rewrite

import (
	"fmt"
)

// nodePattern is one node-pattern occurrence (alias:Label {..}) inside a
// pattern segment. Spans are byte offsets into the original query text.
// Ephemeral working data: lives only for one rewrite call.
type nodePattern struct {
	Alias    string
	Labels   []string
	Start    int // offset of '('
	End      int // offset just past ')'
	MapStart int // offset of '{', or -1
	MapEnd   int // offset just past '}', or -1
}

// relPattern is one relationship-pattern occurrence -[alias:TYPE {..}]-.
type relPattern struct {
	Alias    string
	Types    []string
	Start    int // offset of '['
	End      int // offset just past ']'
	MapStart int
	MapEnd   int
	VarLen   bool
}

// patternScan is the result of scanning one MATCH/CREATE/MERGE segment.
type patternScan struct {
	Nodes []nodePattern
	Rels  []relPattern
}

// nodeOpener reports whether a '(' at position i in the masked text starts a
// node pattern, judged by the preceding non-space byte. Parens preceded by an
// identifier or ')' are calls or indexing, not node patterns.
func nodeOpener(masked string, segContentStart, i int) bool {
	j := i - 1
	for j >= segContentStart {
		c := masked[j]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			j--
			continue
		}
		switch c {
		case ',', '-', '>', '<', '(', '=', '|':
			return true
		}
		return false
	}
	return true // first token after the clause keyword
}

// scanPatterns finds node and relationship patterns inside the given span of
// the masked query. It fails closed: label expressions, dynamic labels, and
// shapes it cannot statically read produce an error instead of being skipped.
func scanPatterns(masked string, contentStart, end int) (*patternScan, error) {
	scan := &patternScan{}
	i := contentStart
	for i < end {
		switch masked[i] {
		case '(':
			if !nodeOpener(masked, contentStart, i) {
				i++
				continue
			}
			node, next, ok, err := parseNode(masked, i, end)
			if err != nil {
				return nil, err
			}
			if !ok {
				// Grouping paren (e.g. shortestPath argument); scan inside.
				i++
				continue
			}
			scan.Nodes = append(scan.Nodes, node)
			i = next
		case '[':
			// Relationship patterns always follow a dash.
			if p := prevNonSpace(masked, contentStart, i); p != '-' {
				i = skipBracket(masked, i, end)
				continue
			}
			rel, next, err := parseRel(masked, i, end)
			if err != nil {
				return nil, err
			}
			scan.Rels = append(scan.Rels, rel)
			i = next
		case '{':
			// Stray property map outside a parsed pattern; skip it whole.
			i = skipBrace(masked, i, end)
		default:
			i++
		}
	}
	return scan, nil
}

// prevNonSpace returns the previous non-whitespace byte before i, or 0.
func prevNonSpace(s string, start, i int) byte {
	for j := i - 1; j >= start; j-- {
		c := s[j]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return c
		}
	}
	return 0
}

// parseNode parses a node pattern starting at the '(' at offset i.
// Returns ok=false when the paren is structural grouping rather than a node.
func parseNode(masked string, i, end int) (nodePattern, int, bool, error) {
	node := nodePattern{Start: i, MapStart: -1, MapEnd: -1}
	j := skipSpace(masked, i+1)

	// Grouping: '(' directly followed by another pattern or expression.
	if j < end && (masked[j] == '(' || masked[j] == '<' || masked[j] == '-') {
		return nodePattern{}, 0, false, nil
	}

	// Optional alias.
	if j < end && isIdentStart(masked[j]) {
		k := j
		for k < end && isIdentByte(masked[k]) {
			k++
		}
		node.Alias = masked[j:k]
		j = skipSpace(masked, k)
	}

	// Optional labels.
	sawColon := false
	for j < end && masked[j] == ':' {
		sawColon = true
		j = skipSpace(masked, j+1)
		if j >= end || !isIdentStart(masked[j]) {
			// Masked (backquoted) or dynamic label - cannot be read statically.
			return nodePattern{}, 0, false, fmt.Errorf("%w: unreadable label in node pattern", ErrUnrewritable)
		}
		k := j
		for k < end && isIdentByte(masked[k]) {
			k++
		}
		node.Labels = append(node.Labels, masked[j:k])
		j = skipSpace(masked, k)
		if j < end && (masked[j] == '|' || masked[j] == '&' || masked[j] == '!' || masked[j] == '%') {
			return nodePattern{}, 0, false, fmt.Errorf("%w: label expression in node pattern", ErrUnrewritable)
		}
	}

	// Optional inline property map.
	if j < end && masked[j] == '{' {
		node.MapStart = j
		node.MapEnd = skipBrace(masked, j, end)
		if node.MapEnd <= node.MapStart {
			return nodePattern{}, 0, false, fmt.Errorf("%w: unbalanced property map", ErrUnrewritable)
		}
		j = skipSpace(masked, node.MapEnd)
	}

	if j < end && masked[j] == ')' {
		node.End = j + 1
		return node, node.End, true, nil
	}

	// Anything else inside the parens (inline WHERE, parameters, expressions).
	if sawColon || node.Alias != "" || node.MapStart >= 0 {
		return nodePattern{}, 0, false, fmt.Errorf("%w: unsupported node pattern shape", ErrUnrewritable)
	}
	return nodePattern{}, 0, false, nil
}

// parseRel parses a relationship pattern starting at the '[' at offset i.
func parseRel(masked string, i, end int) (relPattern, int, error) {
	rel := relPattern{Start: i, MapStart: -1, MapEnd: -1}
	j := skipSpace(masked, i+1)

	// Optional alias.
	if j < end && isIdentStart(masked[j]) {
		k := j
		for k < end && isIdentByte(masked[k]) {
			k++
		}
		rel.Alias = masked[j:k]
		j = skipSpace(masked, k)
	}

	// Optional type list, '|'-separated.
	if j < end && masked[j] == ':' {
		for {
			j = skipSpace(masked, j+1)
			if j >= end || !isIdentStart(masked[j]) {
				return relPattern{}, 0, fmt.Errorf("%w: unreadable relationship type", ErrUnrewritable)
			}
			k := j
			for k < end && isIdentByte(masked[k]) {
				k++
			}
			rel.Types = append(rel.Types, masked[j:k])
			j = skipSpace(masked, k)
			if j < end && masked[j] == '|' {
				continue
			}
			break
		}
	}

	// Variable-length marker.
	if j < end && masked[j] == '*' {
		rel.VarLen = true
		for j < end && masked[j] != ']' && masked[j] != '{' {
			j++
		}
		j = skipSpace(masked, j)
	}

	// Optional inline property map.
	if j < end && masked[j] == '{' {
		rel.MapStart = j
		rel.MapEnd = skipBrace(masked, j, end)
		if rel.MapEnd <= rel.MapStart {
			return relPattern{}, 0, fmt.Errorf("%w: unbalanced property map", ErrUnrewritable)
		}
		j = skipSpace(masked, rel.MapEnd)
	}

	if j < end && masked[j] == ']' {
		rel.End = j + 1
		return rel, rel.End, nil
	}
	return relPattern{}, 0, fmt.Errorf("%w: unsupported relationship pattern shape", ErrUnrewritable)
}

// skipBrace returns the offset just past the '}' matching the '{' at i,
// or i on unbalanced input.
func skipBrace(masked string, i, end int) int {
	depth := 0
	for j := i; j < end; j++ {
		switch masked[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return i
}

// skipBracket returns the offset just past the ']' matching the '[' at i,
// or i+1 on unbalanced input so scanning can continue.
func skipBracket(masked string, i, end int) int {
	depth := 0
	for j := i; j < end; j++ {
		switch masked[j] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return i + 1
}

package rewrite

import (
	"regexp"
	"strings"
)

// Kind classifies one clause-level segment of a query. The segmentation is
// lexical: clause keywords are segment boundaries, nothing more. Anything
// that is not one of the enumerated clause shapes is KindOther.
type Kind int

const (
	KindOther Kind = iota
	KindMatch
	KindOptionalMatch
	KindCreate
	KindMerge
	KindWhere
	KindWith
	KindReturn
	KindUnwind
	KindCall
	KindUnion
)

// String returns the clause name for logging.
func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "MATCH"
	case KindOptionalMatch:
		return "OPTIONAL MATCH"
	case KindCreate:
		return "CREATE"
	case KindMerge:
		return "MERGE"
	case KindWhere:
		return "WHERE"
	case KindWith:
		return "WITH"
	case KindReturn:
		return "RETURN"
	case KindUnwind:
		return "UNWIND"
	case KindCall:
		return "CALL"
	case KindUnion:
		return "UNION"
	}
	return "OTHER"
}

// Segment is one clause-level span of the original query text.
type Segment struct {
	Kind       Kind
	Start      int // byte offset of the clause keyword
	KeywordEnd int // byte offset just past the clause keyword
	End        int // byte offset just past the segment (start of next keyword)
}

// clauseKeywords matches clause keywords at word boundaries. Longer
// multi-word keywords come first so OPTIONAL MATCH wins over MATCH.
var clauseKeywords = regexp.MustCompile(`(?i)\b(OPTIONAL\s+MATCH|DETACH\s+DELETE|ON\s+CREATE\s+SET|ON\s+MATCH\s+SET|ORDER\s+BY|MATCH|CREATE|MERGE|WHERE|WITH|RETURN|UNWIND|FOREACH|CALL|UNION|SET|DELETE|REMOVE|LIMIT|SKIP)\b`)

// classifyKeyword maps a matched keyword to its segment kind.
func classifyKeyword(kw string) Kind {
	switch strings.ToUpper(string(clauseSpace.ReplaceAll([]byte(kw), []byte(" ")))) {
	case "MATCH":
		return KindMatch
	case "OPTIONAL MATCH":
		return KindOptionalMatch
	case "CREATE":
		return KindCreate
	case "MERGE":
		return KindMerge
	case "WHERE":
		return KindWhere
	case "WITH":
		return KindWith
	case "RETURN":
		return KindReturn
	case "UNWIND":
		return KindUnwind
	case "CALL":
		return KindCall
	case "UNION":
		return KindUnion
	}
	return KindOther
}

var clauseSpace = regexp.MustCompile(`\s+`)

// segmentQuery splits the masked query into clause-level segments.
// Text before the first keyword, if any, becomes a leading KindOther segment.
func segmentQuery(masked string) []Segment {
	locs := clauseKeywords.FindAllStringIndex(masked, -1)
	if len(locs) == 0 {
		return []Segment{{Kind: KindOther, Start: 0, End: len(masked)}}
	}

	var segs []Segment
	if strings.TrimSpace(masked[:locs[0][0]]) != "" {
		segs = append(segs, Segment{Kind: KindOther, Start: 0, KeywordEnd: 0, End: locs[0][0]})
	}
	for i, loc := range locs {
		end := len(masked)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segs = append(segs, Segment{
			Kind:       classifyKeyword(masked[loc[0]:loc[1]]),
			Start:      loc[0],
			KeywordEnd: loc[1],
			End:        end,
		})
	}
	return segs
}

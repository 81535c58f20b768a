package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(segs []Segment) []Kind {
	out := make([]Kind, len(segs))
	for i, s := range segs {
		out[i] = s.Kind
	}
	return out
}

func TestSegmentQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []Kind
	}{
		{
			"read",
			"MATCH (b:Business) WHERE b.x = 1 RETURN b",
			[]Kind{KindMatch, KindWhere, KindReturn},
		},
		{
			"optional match is one keyword",
			"MATCH (a:X) OPTIONAL MATCH (b:Y) RETURN a, b",
			[]Kind{KindMatch, KindOptionalMatch, KindReturn},
		},
		{
			"write",
			"CREATE (b:Business {id: $id}) RETURN b",
			[]Kind{KindCreate, KindReturn},
		},
		{
			"merge with set",
			"MERGE (b:Business {id: $id}) ON CREATE SET b.seen = 1 RETURN b",
			[]Kind{KindMerge, KindOther, KindReturn},
		},
		{
			"lowercase keywords",
			"match (b:Business) return b",
			[]Kind{KindMatch, KindReturn},
		},
		{
			"with and union",
			"MATCH (a:X) WITH a RETURN a UNION MATCH (b:X) RETURN b",
			[]Kind{KindMatch, KindWith, KindReturn, KindUnion, KindMatch, KindReturn},
		},
		{
			"no clause keyword",
			"SHOW INDEXES",
			[]Kind{KindOther},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := segmentQuery(MaskLiterals(tt.query))
			assert.Equal(t, tt.want, kinds(segs))
		})
	}
}

func TestSegmentQuery_KeywordInLiteralIgnored(t *testing.T) {
	segs := segmentQuery(MaskLiterals(`MATCH (b:Business {note: 'please RETURN this'}) RETURN b`))
	assert.Equal(t, []Kind{KindMatch, KindReturn}, kinds(segs))
}

func TestMaskLiterals(t *testing.T) {
	in := `MATCH (b:Business {a: "x (y)", b: 'it''s'}) // trailing MATCH
RETURN b`
	masked := MaskLiterals(in)
	require.Len(t, masked, len(in))
	assert.NotContains(t, masked, `x (y)`)
	assert.NotContains(t, masked, "trailing")
	assert.Contains(t, masked, "RETURN b")
}

func TestMaskLiterals_EscapedQuote(t *testing.T) {
	in := `MATCH (b:Business {a: "he said \"hi\""}) RETURN b`
	masked := MaskLiterals(in)
	require.Len(t, masked, len(in))
	assert.Contains(t, masked, "RETURN b")
	assert.NotContains(t, masked, "hi")
}

func TestScanPatterns_ShortestPathGrouping(t *testing.T) {
	q := "MATCH p = shortestPath((a:Business)-[:LINKED]-(b:Business)) RETURN p"
	masked := MaskLiterals(q)
	segs := segmentQuery(masked)
	require.Equal(t, KindMatch, segs[0].Kind)

	scan, err := scanPatterns(masked, segs[0].KeywordEnd, segs[0].End)
	require.NoError(t, err)
	require.Len(t, scan.Nodes, 2)
	assert.Equal(t, "a", scan.Nodes[0].Alias)
	assert.Equal(t, "b", scan.Nodes[1].Alias)
}

func TestScanPatterns_ListLiteralNotARelationship(t *testing.T) {
	q := "MATCH (b:Business {tags: ['x', 'y']}) RETURN b"
	masked := MaskLiterals(q)
	segs := segmentQuery(masked)
	scan, err := scanPatterns(masked, segs[0].KeywordEnd, segs[0].End)
	require.NoError(t, err)
	require.Len(t, scan.Nodes, 1)
	assert.Empty(t, scan.Rels)
}

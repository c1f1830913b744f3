package collection

import (
	"github.com/sahilm/fuzzy"

	"github.com/kailas-cloud/casetable/internal/domain/attribute"
)

// AttrMatch is one attribute hit from FindAttributes.
type AttrMatch struct {
	Collection Ref                 `json:"collection"`
	Attr       attribute.Attribute `json:"attr"`
	Score      int                 `json:"score"`
	// Matched holds the byte offsets of the display name matched by the query.
	Matched []int `json:"matched"`
}

// FindAttributes fuzzy-matches query against attribute display names across
// cols. Best matches first; ties keep root-to-leaf, left-to-right order.
// An empty query matches nothing.
func FindAttributes(cols []Collection, query string) []AttrMatch {
	if query == "" {
		return nil
	}
	type owner struct{ col, attr int }
	var (
		names  []string
		owners []owner
	)
	for ci, c := range cols {
		for ai, a := range c.Attrs {
			names = append(names, a.DisplayName())
			owners = append(owners, owner{ci, ai})
		}
	}

	matches := fuzzy.Find(query, names)
	out := make([]AttrMatch, 0, len(matches))
	for _, m := range matches {
		o := owners[m.Index]
		c := cols[o.col]
		out = append(out, AttrMatch{
			Collection: c.Ref(),
			Attr:       c.Attrs[o.attr].Clone(),
			Score:      m.Score,
			Matched:    m.MatchedIndexes,
		})
	}
	return out
}

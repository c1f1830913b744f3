// Package lineage derives the root-to-leaf chain of a selected case.
package lineage

import "github.com/kailas-cloud/casetable/internal/domain/collection"

// Entry is one hop of a lineage.
type Entry struct {
	CaseID       int `json:"caseId"`
	CollectionID int `json:"collectionId"`
}

// Lineage is ordered root to leaf.
type Lineage []Entry

// Compute walks parent pointers from the selected case up through each parent
// collection. A missing or misplaced ancestor ends the walk, so the result
// holds the resolvable chain from the highest found ancestor down to the
// selected case. An unknown selected case yields an empty lineage.
func Compute(cols []collection.Collection, selectedCaseID int) Lineage {
	cases := collection.IndexCases(cols)
	parentOf := make(map[int]*int, len(cols))
	for _, c := range cols {
		parentOf[c.ID] = c.ParentID
	}

	cur, ok := cases[selectedCaseID]
	if !ok {
		return Lineage{}
	}

	rev := make([]Entry, 0, len(cols))
	for len(rev) <= len(cols) {
		rev = append(rev, Entry{CaseID: cur.ID, CollectionID: cur.Collection.ID})
		if cur.Parent == nil {
			break
		}
		parentCol := parentOf[cur.Collection.ID]
		next, ok := cases[*cur.Parent]
		if !ok || parentCol == nil || next.Collection.ID != *parentCol {
			break
		}
		cur = next
	}

	out := make(Lineage, len(rev))
	for i, e := range rev {
		out[len(rev)-1-i] = e
	}
	return out
}

// CaseIDs returns the case ids root to leaf.
func (l Lineage) CaseIDs() []int {
	ids := make([]int, len(l))
	for i, e := range l {
		ids[i] = e.CaseID
	}
	return ids
}

// Contains reports whether caseID is on the lineage.
func (l Lineage) Contains(caseID int) bool {
	for _, e := range l {
		if e.CaseID == caseID {
			return true
		}
	}
	return false
}

// Leaf returns the selected case id, false if the lineage is empty.
func (l Lineage) Leaf() (int, bool) {
	if len(l) == 0 {
		return 0, false
	}
	return l[len(l)-1].CaseID, true
}

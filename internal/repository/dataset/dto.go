package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/casetree"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
)

// flexInt decodes a number, a numeric string, or ""/null (nil).
type flexInt struct {
	v *int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode int string: %w", err)
		}
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("decode int string %q: %w", s, err)
		}
		f.v = &n
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode int: %w", err)
	}
	i := int(n)
	f.v = &i
	return nil
}

type collectionInfo struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

type attrRow struct {
	ID         int     `json:"id"`
	CID        string  `json:"cid"`
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	Type       *string `json:"type"`
	Precision  flexInt `json:"precision"`
	Hidden     bool    `json:"hidden"`
	Editable   *bool   `json:"editable"`
	Deleteable *bool   `json:"deleteable"`
	Renameable *bool   `json:"renameable"`
}

type collectionRow struct {
	ID     int       `json:"id"`
	Name   string    `json:"name"`
	Title  string    `json:"title"`
	Parent flexInt   `json:"parent"`
	Attrs  []attrRow `json:"attrs"`
}

type caseRow struct {
	ID         int            `json:"id"`
	Parent     flexInt        `json:"parent"`
	Collection collectionInfo `json:"collection"`
	Values     map[string]any `json:"values"`
	Children   []int          `json:"children"`
}

type caseEnvelope struct {
	Case      caseRow `json:"case"`
	CaseIndex int     `json:"caseIndex"`
}

type createdAttrs struct {
	Attrs []attrRow `json:"attrs"`
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func attrFromRow(r attrRow) attribute.Attribute {
	cid := r.CID
	if cid == "" {
		cid = uuid.NewString()
	}
	title := r.Title
	if title == "" {
		title = r.Name
	}
	var t attribute.Type
	if r.Type != nil {
		t = attribute.Type(*r.Type)
	}
	return attribute.Attribute{
		ID:        r.ID,
		ClientID:  cid,
		Name:      r.Name,
		Title:     title,
		Type:      t,
		Precision: r.Precision.v,
		Hidden:    r.Hidden,
		Editable:  boolOr(r.Editable, true),
		Deletable: boolOr(r.Deleteable, true),
		Renamable: boolOr(r.Renameable, true),
	}
}

func collectionFromRow(r collectionRow) collection.Collection {
	title := r.Title
	if title == "" {
		title = r.Name
	}
	attrs := make([]attribute.Attribute, len(r.Attrs))
	for i, a := range r.Attrs {
		attrs[i] = attrFromRow(a)
	}
	return collection.Collection{
		ID:       r.ID,
		Name:     r.Name,
		Title:    title,
		ParentID: r.Parent.v,
		Attrs:    attrs,
	}
}

func rawCaseFromRow(r caseRow) casetree.RawCase {
	children := r.Children
	if children == nil {
		children = []int{}
	}
	return casetree.RawCase{
		ID:           r.ID,
		CollectionID: r.Collection.ID,
		ParentID:     r.Parent.v,
		Values:       r.Values,
		ChildIDs:     children,
	}
}

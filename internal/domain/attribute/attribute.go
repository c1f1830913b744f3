package attribute

import (
	"strings"

	"github.com/kailas-cloud/casetable/internal/domain"
)

// NewAttrPrefix is the name prefix the host assigns to freshly created attributes.
const NewAttrPrefix = "newAttr"

// Type is the host-declared attribute type. The zero value means "not declared".
type Type string

// Known attribute types. Any other string the host sends is kept as-is.
const (
	None        Type = ""
	Numeric     Type = "numeric"
	Categorical Type = "categorical"
)

// Attribute is a column definition shared by all cases of one collection.
// Name keys case values on the wire; Title is the user-visible label.
// ClientID identifies the attribute across reorders and renames within a session.
type Attribute struct {
	ID        int    `json:"id"`
	ClientID  string `json:"clientId"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Type      Type   `json:"type,omitempty"`
	Precision *int   `json:"precision,omitempty"`
	Hidden    bool   `json:"hidden"`
	Editable  bool   `json:"editable"`
	Deletable bool   `json:"deletable"`
	Renamable bool   `json:"renamable"`
}

// DisplayName returns Title, falling back to Name.
func (a Attribute) DisplayName() string {
	if a.Title != "" {
		return a.Title
	}
	return a.Name
}

// Clone returns a deep copy.
func (a Attribute) Clone() Attribute {
	if a.Precision != nil {
		p := *a.Precision
		a.Precision = &p
	}
	return a
}

// Rename sets both Name and Title; ClientID and ID are untouched.
func (a *Attribute) Rename(name string) {
	a.Name = name
	a.Title = name
}

// ValidateName rejects zero-length names.
func ValidateName(name string) error {
	if name == "" {
		return domain.ErrEmptyName
	}
	return nil
}

// IsNewAttribute reports whether the attribute at index is the freshly added one
// the UI should focus for rename: its display name starts with NewAttrPrefix and
// it is the last element of attrs.
func IsNewAttribute(name string, index int, attrs []Attribute) bool {
	if len(attrs) == 0 {
		return false
	}
	return strings.HasPrefix(name, NewAttrPrefix) && index == len(attrs)-1
}

// CloneAll deep-copies a slice of attributes.
func CloneAll(attrs []Attribute) []Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = a.Clone()
	}
	return out
}

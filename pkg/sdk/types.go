package casetable

import "encoding/json"

// Layout is a rendering strategy.
type Layout string

// Layouts. Flat is forced for single-collection datasets.
const (
	LayoutUnselected Layout = ""
	LayoutFlat       Layout = "flat"
	LayoutPortrait   Layout = "portrait"
	LayoutLandscape  Layout = "landscape"
)

// ValueKind tells how a case value renders.
type ValueKind string

// Value kinds.
const (
	KindNumeric ValueKind = "numeric"
	KindText    ValueKind = "text"
	KindEmpty   ValueKind = "empty"
)

// Value is a tagged case value.
type Value struct {
	Kind      ValueKind
	Raw       any
	Formatted string
}

// Attribute is a column of one collection.
type Attribute struct {
	ID        int
	ClientID  string
	Name      string
	Title     string
	Type      string
	Precision *int
	Hidden    bool
	Editable  bool
	Renamable bool
}

// Case is one record with its child cases embedded.
type Case struct {
	ID       int
	Parent   *int
	Values   map[string]Value
	Children []*Case
}

// Collection is one level of the dataset hierarchy.
type Collection struct {
	ID       int
	Name     string
	Title    string
	ParentID *int
	Attrs    []Attribute
	Cases    []*Case
	// Class is the per-level style token.
	Class string
}

// DatasetInfo is one entry of the host's dataset list.
type DatasetInfo struct {
	ID    int
	Name  string
	Title string
}

// State is a read-only view of the selected dataset.
type State struct {
	Dataset      string
	Subscription string
	Layout       Layout
	Preference   Layout
	Collections  []Collection
	// NewAttribute is the client id of the attribute to focus for rename.
	NewAttribute string
	Pending      []string
	Stale        bool
	StaleReason  string
	Warnings     []string
	// Lineage holds the selected case ids root to leaf.
	Lineage []int
}

// AttrMatch is one fuzzy attribute search hit.
type AttrMatch struct {
	CollectionID   int
	CollectionName string
	Attr           Attribute
	Score          int
	// Matched holds byte offsets into Attr.Title.
	Matched []int
}

// EditResult is the value a cell settled on.
type EditResult struct {
	CaseID int
	Attr   string
	Value  Value
}

// Drop describes an attribute released over a drop target.
type Drop struct {
	SourceCollectionID int
	AttrClientID       string
	// TargetCollectionID is a collection id, or "root" for the new top-level zone.
	// Empty means the source collection.
	TargetCollectionID string
	TargetAttrClientID string
	NewCollection      bool
	Right              bool

	// Pointer geometry for header drops; leave zero when unknown.
	DraggedTop   float64
	DeltaY       float64
	TargetTop    float64
	TargetHeight float64
}

// MovePlan reports what a drop did.
type MovePlan struct {
	Kind              string
	AttrClientID      string
	SourceCollection  string
	TargetCollection  string
	Position          int
	NewCollectionName string
}

// Notification is a host-pushed message.
type Notification struct {
	Resource string
	Values   json.RawMessage
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

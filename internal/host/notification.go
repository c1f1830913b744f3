package host

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Operation is the kind of change a notification announces.
type Operation string

// Operations sent in dataContextChangeNotice and documentChangeNotice.
const (
	OpSelectCases       Operation = "selectCases"
	OpUpdateCases       Operation = "updateCases"
	OpCreateCases       Operation = "createCases"
	OpDeleteCases       Operation = "deleteCases"
	OpSortCases         Operation = "sortCases"
	OpCreateCollection  Operation = "createCollection"
	OpUpdateCollection  Operation = "updateCollection"
	OpDeleteCollection  Operation = "deleteCollection"
	OpCreateAttributes  Operation = "createAttributes"
	OpUpdateAttributes  Operation = "updateAttributes"
	OpDeleteAttributes  Operation = "deleteAttributes"
	OpMoveAttribute     Operation = "moveAttribute"
	OpHideAttributes    Operation = "hideAttributes"
	OpUnhideAttributes  Operation = "unhideAttributes"
	OpUpdateDataContext Operation = "updateDataContext"
	OpDataContextCount  Operation = "dataContextCountChanged"
	OpDataContextDelete Operation = "dataContextDeleted"
)

// IsSelection reports whether op changes only the selection.
func (op Operation) IsSelection() bool { return op == OpSelectCases }

// IsStructural reports whether op invalidates the local collection tree.
func (op Operation) IsStructural() bool {
	switch op {
	case OpUpdateCases, OpCreateCases, OpDeleteCases, OpSortCases,
		OpCreateCollection, OpUpdateCollection, OpDeleteCollection,
		OpCreateAttributes, OpUpdateAttributes, OpDeleteAttributes,
		OpMoveAttribute, OpHideAttributes, OpUnhideAttributes,
		OpUpdateDataContext:
		return true
	default:
		return false
	}
}

// SelectedCase is one entry of a selectCases result.
type SelectedCase struct {
	ID         int  `json:"id"`
	Parent     *int `json:"parent,omitempty"`
	Collection struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"collection"`
}

// ChangeNotice is the decoded body of a change notification.
type ChangeNotice struct {
	Operation Operation `json:"operation"`
	Result    struct {
		Success bool           `json:"success"`
		Cases   []SelectedCase `json:"cases,omitempty"`
	} `json:"result"`
}

// DecodeChangeNotice parses notification values. The host sends either one
// notice object or an array of them.
func DecodeChangeNotice(raw json.RawMessage) ([]ChangeNotice, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var many []ChangeNotice
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, fmt.Errorf("decode change notices: %w", err)
		}
		return many, nil
	}
	var one ChangeNotice
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decode change notice: %w", err)
	}
	return []ChangeNotice{one}, nil
}

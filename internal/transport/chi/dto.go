package chi

import (
	"github.com/kailas-cloud/casetable/internal/domain/attribute"
	"github.com/kailas-cloud/casetable/internal/domain/collection"
	"github.com/kailas-cloud/casetable/internal/domain/lineage"
	domrel "github.com/kailas-cloud/casetable/internal/domain/relocation"
)

type stateResponse struct {
	Dataset      string                    `json:"dataset"`
	Subscription string                    `json:"subscription"`
	Layout       string                    `json:"layout"`
	Preference   string                    `json:"preference"`
	Collections  []collection.Collection   `json:"collections"`
	Classes      map[int]string            `json:"classes"`
	NewAttribute string                    `json:"newAttribute,omitempty"`
	Pending      []string                  `json:"pending"`
	Stale        bool                      `json:"stale"`
	StaleReason  string                    `json:"staleReason,omitempty"`
	Warnings     []string                  `json:"warnings"`
	Lineage      lineage.Lineage           `json:"lineage"`
	Precisions   map[string]int            `json:"precisions"`
	Types        map[string]attribute.Type `json:"types"`
	Visibilities map[string]bool           `json:"visibilities"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type renameRequest struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

type editRequest struct {
	Value any `json:"value"`
}

type layoutRequest struct {
	Layout string `json:"layout"`
}

type sortRequest struct {
	Attr       string `json:"attr"`
	Descending bool   `json:"descending"`
}

type moveRequest struct {
	Source   domrel.Source   `json:"source"`
	Target   domrel.Target   `json:"target"`
	Side     domrel.Side     `json:"side"`
	Geometry domrel.Geometry `json:"geometry"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type dispatchResponse struct {
	Delivered int `json:"delivered"`
}

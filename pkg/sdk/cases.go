package casetable

import (
	"context"
	"fmt"
	"time"
)

// CaseService edits and orders case values.
type CaseService struct {
	model modelUseCase
	obs   *observer
}

// Edit sets one cell. The result is the value the host confirmed; on failure
// the cell keeps its last confirmed value.
func (s *CaseService) Edit(
	ctx context.Context, caseID int, attrTitle string, v any,
) (_ EditResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe("case.edit", start, err) }()

	res, err := s.model.EditCaseValue(ctx, v, caseID, attrTitle)
	if err != nil {
		return EditResult{}, fmt.Errorf("edit case %d: %w", caseID, err)
	}
	return EditResult{CaseID: res.CaseID, Attr: res.Attr, Value: fromInternalValue(res.Value)}, nil
}

// Sort asks the host to order the dataset by an attribute.
func (s *CaseService) Sort(ctx context.Context, attr string, descending bool) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("case.sort", start, err) }()

	if err = s.model.Sort(ctx, attr, descending); err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	return nil
}

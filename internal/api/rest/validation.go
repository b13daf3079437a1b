package rest

import (
	"fmt"

	"github.com/worktrack/worktrack/pkg/model"
)

const maxListOffset = 100000

func validateFilterRequest(req *FilterRequest) error {
	if req.Saved != "" && !req.FilterSet.IsEmpty() {
		return fmt.Errorf("saved cannot be combined with conditions or sort")
	}
	if req.Saved == "" && len(req.Conditions) == 0 && len(req.Operators) > 0 {
		return fmt.Errorf("operators without conditions")
	}
	return nil
}

func validateListQuery(q *ListFiltersQuery) error {
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if q.Offset < 0 || q.Offset > maxListOffset {
		return fmt.Errorf("offset must be between 0 and %d", maxListOffset)
	}
	return nil
}

func validateTableParam(id string) error {
	if !model.CheckTableID(id) {
		return fmt.Errorf("invalid table id %q", id)
	}
	return nil
}

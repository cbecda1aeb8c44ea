package table

import (
	"coredb/common"
	"coredb/filter"
)

// scanPlan names the index-assisted path FindIndexForScan picked, if any.
type scanPlan struct {
	attrName string
	op       common.CompareOp
	value    []byte
}

// FindIndexForScan looks for a single-attribute equality/range comparison
// inside filt (either filt itself, or one leaf of a top-level AndFilter)
// that matches one of the table's declared indexes. The full filter is
// still applied to every candidate tuple the index scan yields; the index
// only narrows which tuples are considered.
func (t *Table) FindIndexForScan(filt filter.Filter) (scanPlan, bool) {
	if hint, ok := filt.(filter.IndexHint); ok {
		if plan, ok := t.planFromHint(hint); ok {
			return plan, true
		}
	}
	if and, ok := filt.(filter.AndFilter); ok {
		for _, sub := range and.Filters {
			if hint, ok := sub.(filter.IndexHint); ok {
				if plan, ok := t.planFromHint(hint); ok {
					return plan, true
				}
			}
		}
	}
	return scanPlan{}, false
}

func (t *Table) planFromHint(hint filter.IndexHint) (scanPlan, bool) {
	attrName, op, value, ok := hint.IndexHint()
	if !ok {
		return scanPlan{}, false
	}
	if _, exists := t.indexes[attrName]; !exists {
		return scanPlan{}, false
	}
	return scanPlan{attrName: attrName, op: op, value: value}, true
}

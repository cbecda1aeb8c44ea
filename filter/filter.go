// Package filter defines the predicate contract record and B+-tree scanners
// apply to candidate tuples, plus a couple of concrete filters used by
// tests and by index-eligible-scan detection. The condition-filter library a
// full query layer would plug in here is out of scope; this is the seam it
// would attach to.
package filter

import "coredb/common"

// Filter decides whether a raw, fixed-layout tuple matches a predicate.
type Filter interface {
	Matches(rawTuple []byte) bool
}

// Func adapts a plain function to the Filter interface.
type Func func(rawTuple []byte) bool

func (f Func) Matches(rawTuple []byte) bool {
	return f(rawTuple)
}

// All matches every tuple; used where scan_record is called with no
// predicate.
var All Filter = Func(func([]byte) bool { return true })

// AndFilter matches when every one of Filters matches; it is a concrete
// type (not a closure) so callers such as table.FindIndexForScan can look
// inside it for an indexable sub-filter.
type AndFilter struct {
	Filters []Filter
}

func (a AndFilter) Matches(rawTuple []byte) bool {
	for _, f := range a.Filters {
		if !f.Matches(rawTuple) {
			return false
		}
	}
	return true
}

// And matches when every sub-filter matches.
func And(filters ...Filter) Filter {
	return AndFilter{Filters: filters}
}

// IndexHint is implemented by filters that can be satisfied by a single
// equality/range comparison against one named attribute, the condition
// table.FindIndexForScan looks for to pick an index-assisted scan.
type IndexHint interface {
	Filter
	IndexHint() (attrName string, op common.CompareOp, value []byte, ok bool)
}

package broadcast

import "sort"

// Set accumulates the broadcast values seen by a node.
type Set struct {
	Values map[uint64]struct{}
}

// NewSet ...
func NewSet() Set {
	return Set{Values: make(map[uint64]struct{})}
}

// Add inserts v and reports whether it was new.
func (s Set) Add(v uint64) bool {
	if _, ok := s.Values[v]; ok {
		return false
	}
	s.Values[v] = struct{}{}
	return true
}

// Sorted returns the values in ascending order.
func (s Set) Sorted() []uint64 {
	res := make([]uint64, 0, len(s.Values))
	for v := range s.Values {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

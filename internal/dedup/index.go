// Package dedup holds the set of order ids already recorded in the sink.
package dedup

import (
	"strconv"
	"strings"
)

// Index is an in-memory set of recorded order ids for one run.
// It is not safe for concurrent use; a run is a single linear pass.
type Index struct {
	ids map[int64]struct{}
}

// Load builds an Index from raw order_id cells. Empty and non-numeric cells are ignored.
func Load(cells []string) *Index {
	idx := &Index{ids: make(map[int64]struct{}, len(cells))}
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		idx.ids[id] = struct{}{}
	}
	return idx
}

// Has reports whether id is recorded.
func (i *Index) Has(id int64) bool {
	_, ok := i.ids[id]
	return ok
}

// Add marks id as recorded.
func (i *Index) Add(id int64) {
	i.ids[id] = struct{}{}
}

// Len returns the number of distinct ids.
func (i *Index) Len() int {
	return len(i.ids)
}

// Package scheduler produces the spatially-interleaved chunk load order
// the viewer uses so that a coarse approximation of the whole image
// appears early, rather than filling left-to-right (spec.md §4.6).
package scheduler

// ID identifies a chunk by its grid indices.
type ID struct {
	Cx, Cy uint32
}

// Batches partitions every (cx, cy) pair in a gx x gy grid into four
// disjoint batches by parity:
//
//  1. cx odd,  cy odd
//  2. cx even, cy even
//  3. cx odd,  cy even
//  4. cx even, cy odd
//
// Within a batch, ordering is stable (row-major) but otherwise
// unspecified by the caller's contract (spec.md §4.6). The union of all
// four batches is exactly the full grid, each ID appearing once.
func Batches(gx, gy uint32) [4][]ID {
	var batches [4][]ID

	for cy := uint32(0); cy < gy; cy++ {
		for cx := uint32(0); cx < gx; cx++ {
			idx := batchIndex(cx, cy)
			batches[idx] = append(batches[idx], ID{Cx: cx, Cy: cy})
		}
	}

	return batches
}

// batchIndex returns which of the four parity batches (cx, cy) belongs to.
func batchIndex(cx, cy uint32) int {
	switch {
	case cx%2 == 1 && cy%2 == 1:
		return 0
	case cx%2 == 0 && cy%2 == 0:
		return 1
	case cx%2 == 1 && cy%2 == 0:
		return 2
	default: // cx even, cy odd
		return 3
	}
}

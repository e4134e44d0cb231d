// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package flow

// sweep turns the occupancy difference array into per-bucket load.
//
// With one worker it is a plain running sum. With more, the bucket range is
// split into contiguous partitions: each partition's delta total is summed
// concurrently, the totals are prefix-summed into the occupancy carried
// across each seam, and every partition then replays its own deltas
// starting from that carried value.
func (e *Engine) sweep(delta []int) []int {
	load := make([]int, len(delta))
	ranges := partition(len(delta), e.workers)
	if len(ranges) == 1 {
		running := 0
		for i, d := range delta {
			running += d
			load[i] = running
		}
		return load
	}

	totals := make([]int, len(ranges))
	e.parallel(len(ranges), func(r int) {
		sum := 0
		for _, d := range delta[ranges[r].lo:ranges[r].hi] {
			sum += d
		}
		totals[r] = sum
	})

	carry := make([]int, len(ranges))
	for r := 1; r < len(ranges); r++ {
		carry[r] = carry[r-1] + totals[r-1]
	}

	e.parallel(len(ranges), func(r int) {
		running := carry[r]
		for i := ranges[r].lo; i < ranges[r].hi; i++ {
			running += delta[i]
			load[i] = running
		}
	})
	return load
}

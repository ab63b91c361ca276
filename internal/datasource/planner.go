package datasource

// PlanNeighborhoodExpansion allocates extra chunk offsets around a set of
// hit offsets, growing toward a budget of extra chunks to add without
// overlapping the input hits or each other.
//
// offsets must be supplied sorted ascending and distinct; total is the
// document's chunk count (T); budget is G, the number of extra chunks to
// add. The result maps each newly-selected offset to the hit offset that
// caused its selection.
//
// Each anchor oi is allocated a left window Li and a right window Ri,
// computed left-to-right so that windows already assigned to earlier
// anchors reduce later availability. The per-anchor target is floor(G/n);
// the remainder G mod n is not redistributed.
func PlanNeighborhoodExpansion(offsets []int, budget, total int) map[int]int {
	result := make(map[int]int)
	n := len(offsets)
	if total == 0 || n == 0 || budget == 0 {
		return result
	}

	perAnchor := budget / n
	half := perAnchor / 2

	taken := make(map[int]bool, n)
	for _, o := range offsets {
		taken[o] = true
	}

	prevRightEdge := -1 // exclusive upper bound occupied by the previous anchor's right window
	for i, o := range offsets {
		var availRight int
		if i < n-1 {
			availRight = offsets[i+1] - o - 1
		} else {
			availRight = total - o - 1
		}

		var availLeft int
		if i == 0 {
			availLeft = o
		} else {
			availLeft = o - (prevRightEdge + 1)
		}
		if availLeft < 0 {
			availLeft = 0
		}

		var left, right int
		switch {
		case availLeft >= half && availRight >= half:
			left, right = half, half
		case availLeft+availRight < perAnchor:
			left, right = availLeft, availRight
		case availLeft < availRight:
			left, right = availLeft, perAnchor-availLeft
		default:
			left, right = perAnchor-availRight, availRight
		}

		for e := o - left; e <= o+right; e++ {
			if e < 0 || e >= total {
				continue
			}
			if taken[e] {
				continue
			}
			if _, exists := result[e]; exists {
				continue
			}
			result[e] = o
		}

		prevRightEdge = o + right
	}

	return result
}

package entity

// quicksortBySize performs an in-place quicksort of layouts ordered by
// Size(), the comparator the full layout select uses once it has decoded
// the JSON-aggregated extent list: size is not a column the backend can
// ORDER BY, so sorting happens here instead of in SQL (spec §4.C).
func quicksortBySize(layouts []Layout, desc bool) {
	less := func(a, b int64) bool {
		if desc {
			return a > b
		}
		return a < b
	}
	var sort func(lo, hi int)
	sort = func(lo, hi int) {
		if lo >= hi {
			return
		}
		pivot := layouts[(lo+hi)/2].Size()
		i, j := lo, hi
		for i <= j {
			for less(layouts[i].Size(), pivot) {
				i++
			}
			for less(pivot, layouts[j].Size()) {
				j--
			}
			if i <= j {
				layouts[i], layouts[j] = layouts[j], layouts[i]
				i++
				j--
			}
		}
		sort(lo, j)
		sort(i, hi)
	}
	sort(0, len(layouts)-1)
}

// SortLayoutsBySize sorts layouts in place by their aggregate extent size
// (spec §4.C full layout select).
func SortLayoutsBySize(layouts []Layout, order SortOrder) {
	quicksortBySize(layouts, order == Descending)
}

// Package position computes fractional order keys for lists and cards.
//
// Inserting between two neighbors takes the midpoint of their keys, so no
// sibling outside the insertion point is ever rewritten. Repeated inserts at
// the same boundary halve the remaining gap each time; once it reaches float64
// resolution new keys stop separating. There is no renumbering pass; Exhausted
// lets callers detect that ceiling.
package position

// Gap is the spacing between order keys handed out for append-at-end inserts.
const Gap = 1024.0

// MinGap is the smallest neighbor distance still considered safe for another
// midpoint insert.
const MinGap = 1e-9

// Next returns the order key for appending after every existing sibling:
// max+Gap, or Gap for an empty sibling set.
func Next(existing []float64) float64 {
	if len(existing) == 0 {
		return Gap
	}
	max := existing[0]
	for _, p := range existing[1:] {
		if p > max {
			max = p
		}
	}
	return max + Gap
}

// Between returns a key strictly between two neighbor keys. A nil before means
// head insertion, a nil after means tail insertion. Callers must pass the
// neighbors in order; before >= after is a contract violation and yields a
// wrong but non-crashing key.
func Between(before, after *float64) float64 {
	switch {
	case before == nil && after == nil:
		return Gap
	case before == nil:
		return *after - Gap/2
	case after == nil:
		return *before + Gap
	default:
		return (*before + *after) / 2
	}
}

// Exhausted reports whether the gap between two neighbors is too small for
// another midpoint insert to produce a distinct key.
func Exhausted(before, after float64) bool {
	return after-before < MinGap
}

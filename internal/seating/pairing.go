package seating

import "math"

// PairCourses picks, for every course index, the partner that leaves the fewest students
// over an even split of two alternating lanes. Ties go to the more balanced pair, then to
// the lowest index. A single course pairs with itself; no courses yield nil.
func PairCourses(sizes []int) []int {
	switch len(sizes) {
	case 0:
		return nil
	case 1:
		return []int{0}
	}

	pairs := make([]int, len(sizes))
	for i := range sizes {
		minLeftover := math.MaxInt
		minBalance := math.MaxInt
		best := -1
		for j := range sizes {
			if i == j {
				continue
			}
			leftover, balance := pairCost(sizes[i], sizes[j])
			if leftover < minLeftover || (leftover == minLeftover && balance < minBalance) {
				minLeftover = leftover
				minBalance = balance
				best = j
			}
		}
		pairs[i] = best
	}
	return pairs
}

func pairCost(a, b int) (leftover, balance int) {
	half := (a + b + 1) / 2
	leftover = max(0, a-half) + max(0, b-half)
	balance = a - b
	if balance < 0 {
		balance = -balance
	}
	return leftover, balance
}

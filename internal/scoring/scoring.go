package scoring

// Category labels how a prediction relates to the final score. The string
// values are what gets persisted in points.category.
type Category string

const (
	CategoryExact      Category = "exact"
	CategoryDifference Category = "diff"
	CategoryOutcome    Category = "outcome"
	CategoryMiss       Category = "none"
)

const (
	PointsExact      = 4
	PointsDifference = 2
	PointsOutcome    = 1
	PointsMiss       = 0
)

// Points returns the point value of a category.
func Points(c Category) int {
	switch c {
	case CategoryExact:
		return PointsExact
	case CategoryDifference:
		return PointsDifference
	case CategoryOutcome:
		return PointsOutcome
	default:
		return PointsMiss
	}
}

// Classify grades a predicted score against the actual result. Tiers are
// checked in order, first hit wins: exact score (4), goal difference with
// matching outcome including draws (2), outcome only (1), miss (0).
// Total over all integer inputs, no side effects.
func Classify(predHome, predAway, actualHome, actualAway int) (int, Category) {
	if predHome == actualHome && predAway == actualAway {
		return PointsExact, CategoryExact
	}

	predDiff := predHome - predAway
	actualDiff := actualHome - actualAway

	// Sign check is redundant once the differences are equal, but it keeps
	// the draw case explicit.
	if predDiff == actualDiff && sign(predDiff) == sign(actualDiff) {
		return PointsDifference, CategoryDifference
	}

	if sign(predDiff) == sign(actualDiff) {
		return PointsOutcome, CategoryOutcome
	}

	return PointsMiss, CategoryMiss
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

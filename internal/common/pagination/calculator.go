package pagination

import "math"

// CalculateOffset returns the OFFSET for a 1-based page. It is never
// negative and saturates at math.MaxInt instead of overflowing.
//
//   - Page 1, Limit 50 -> Offset 0
//   - Page 3, Limit 10 -> Offset 20
func CalculateOffset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	if page > MaxPage(limit) {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// MaxPage is the largest page whose offset fits in an int.
func MaxPage(limit int) int {
	if limit < 1 {
		return math.MaxInt
	}
	return math.MaxInt / limit
}

// CalculateTotalPages returns ceil(total / limit), and 1 when total is 0.
func CalculateTotalPages(total int64, limit int) int {
	if total == 0 || limit <= 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

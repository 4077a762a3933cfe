package imagesearch

import "github.com/zombar/imagesearch/models"

// AllocateBudget divides an image quota across queries by position.
//
// For an integer budget each query gets max(1, total/Q); the remainder
// goes one each to the earliest queries. For a per-provider budget every
// query gets a flat 1; the per-provider counts are consumed by the
// aggregator as each provider's own requested count.
//
// A nil result means no queries: the caller skips the search step.
func AllocateBudget(queries []string, budget models.Budget) []int {
	if len(queries) == 0 {
		return nil
	}

	counts := make([]int, len(queries))
	if budget.IsPerProvider() {
		for i := range counts {
			counts[i] = 1
		}
		return counts
	}

	perQuery := budget.Total / len(queries)
	if perQuery < 1 {
		perQuery = 1
	}
	remainder := budget.Total % len(queries)

	for i := range counts {
		counts[i] = perQuery
		if i < remainder {
			counts[i]++
		}
	}
	return counts
}

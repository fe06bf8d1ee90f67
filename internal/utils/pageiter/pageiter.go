package pageiter

// Window is the bounded pagination plan derived from the first page's
// reported total. The remote's totalCount is trusted once, on page 1, and
// never re-validated mid-iteration; the ceiling bounds the damage when that
// count is inconsistent.
type Window struct {
	PageSize   int
	TotalCount int
	TotalPages int
	Capped     bool
}

// Plan derives the page window from page 1's totalCount.
//
// Behavior:
//   - TotalPages = ceil(totalCount / pageSize), at least 1.
//   - A non-positive pageSize collapses to a single page.
//   - TotalPages never exceeds ceiling (Capped reports when it was cut).
//
// Example:
//
//	w := pageiter.Plan(101, 50, 100) // TotalPages=3
func Plan(totalCount, pageSize, ceiling int) Window {
	w := Window{PageSize: pageSize, TotalCount: totalCount, TotalPages: 1}

	if pageSize > 0 && totalCount > pageSize {
		w.TotalPages = (totalCount + pageSize - 1) / pageSize
	}
	if ceiling > 0 && w.TotalPages > ceiling {
		w.TotalPages = ceiling
		w.Capped = true
	}
	return w
}

// HasPage reports whether page (1-based) is inside the window.
func (w Window) HasPage(page int) bool {
	return page >= 1 && page <= w.TotalPages
}

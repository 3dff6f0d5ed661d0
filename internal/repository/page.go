package repository

// Page selects a 1-based page of at most Limit rows.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to sane bounds, using def when Limit is unset.
func (p Page) Normalize(def, max int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// TotalPages returns how many pages of p.Limit rows cover total rows.
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

package models

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPageNumber keeps (Number-1)*Limit far from overflow.
	MaxPageNumber = 1_000_000
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// Normalize clamps the page to sane bounds.
func (p *Page) Normalize() {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}

// Offset is the number of items before the page. It is never negative,
// even for a page that was not normalized.
func (p Page) Offset() int {
	n := min(max(p.Number, 1), MaxPageNumber)
	l := min(max(p.Limit, 0), MaxPageLimit)
	return (n - 1) * l
}

// TotalPages returns how many pages total items span.
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

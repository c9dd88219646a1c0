package models

// Page is one zero-based slice of an ordered result set together with the
// total number of rows matching the same filter.
type Page struct {
	Items []Item
	Total int64
	Index int
	Size  int
}

// TotalPages is ceil(Total / Size); zero when nothing matched.
func (p Page) TotalPages() int {
	if p.Size <= 0 || p.Total <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

func (p Page) HasPrev() bool { return p.Index > 0 }
func (p Page) HasNext() bool { return p.Index+1 < p.TotalPages() }

package listsync

import "triageterm/internal/model"

// PageSizes are the sizes offered to the user.
var PageSizes = []int{5, 10, 20, 50, 100}

// ViewState is what the console renders.
type ViewState struct {
	Page     int
	PageSize int
	Total    int
	Filter   string
	Rows     []model.Submission
	Loading  bool
}

func (v ViewState) clone() ViewState {
	v.Rows = append([]model.Submission(nil), v.Rows...)
	return v
}

// TotalPages is at least 1 so an empty result still shows "page 1 of 1".
func (v ViewState) TotalPages() int {
	if v.PageSize < 1 || v.Total <= 0 {
		return 1
	}
	return (v.Total + v.PageSize - 1) / v.PageSize
}

// Range returns the 1-based positions of the first and last visible rows,
// or 0, 0 when nothing is shown.
func (v ViewState) Range() (first, last int) {
	if len(v.Rows) == 0 {
		return 0, 0
	}
	first = (v.Page-1)*v.PageSize + 1
	return first, first + len(v.Rows) - 1
}

func (v ViewState) HasPrev() bool { return v.Page > 1 }

func (v ViewState) HasNext() bool { return v.Page < v.TotalPages() }

// NextPageSize steps through PageSizes; dir > 0 grows, dir < 0 shrinks. A
// size not in the list snaps to the nearest option in that direction.
func NextPageSize(cur, dir int) int {
	if dir > 0 {
		for _, s := range PageSizes {
			if s > cur {
				return s
			}
		}
		return PageSizes[len(PageSizes)-1]
	}
	for i := len(PageSizes) - 1; i >= 0; i-- {
		if PageSizes[i] < cur {
			return PageSizes[i]
		}
	}
	return PageSizes[0]
}

// LastPage is the highest page number that holds rows for total items.
func LastPage(total, pageSize int) int {
	return ViewState{Total: total, PageSize: pageSize}.TotalPages()
}

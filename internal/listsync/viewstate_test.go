package listsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"triageterm/internal/model"
)

func TestViewStateRange(t *testing.T) {
	v := ViewState{Page: 3, PageSize: 5, Total: 12, Rows: make([]model.Submission, 2)}
	first, last := v.Range()
	assert.Equal(t, 11, first)
	assert.Equal(t, 12, last)
	assert.Equal(t, 3, v.TotalPages())
	assert.True(t, v.HasPrev())
	assert.False(t, v.HasNext())

	first, last = ViewState{Page: 1, PageSize: 5}.Range()
	assert.Zero(t, first)
	assert.Zero(t, last)
	assert.Equal(t, 1, ViewState{PageSize: 5}.TotalPages())
}

func TestNextPageSize(t *testing.T) {
	tests := []struct {
		cur, dir, want int
	}{
		{5, 1, 10},
		{100, 1, 100},
		{5, -1, 5},
		{50, -1, 20},
		{7, 1, 10},
		{7, -1, 5},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NextPageSize(tc.cur, tc.dir), "NextPageSize(%d, %d)", tc.cur, tc.dir)
	}
}

func TestLastPage(t *testing.T) {
	assert.Equal(t, 2, LastPage(10, 5))
	assert.Equal(t, 3, LastPage(11, 5))
	assert.Equal(t, 1, LastPage(0, 5))
}

package response

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageResponse(t *testing.T) {
	p := NewPageResponse[string](nil, 1, 20, 0)
	assert.NotNil(t, p.Items)
	assert.Zero(t, p.TotalPages)

	p = NewPageResponse([]string{"a"}, 3, 20, 41)
	assert.Equal(t, 3, p.TotalPages)
}

func TestPaginate(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	toString := func(v *int) string { return strconv.Itoa(*v) }

	p := Paginate(all, 2, 2, toString)
	assert.Equal(t, []string{"3", "4"}, p.Items)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, 3, p.TotalPages)

	p = Paginate(all, 3, 2, toString)
	assert.Equal(t, []string{"5"}, p.Items)

	p = Paginate(all, 9, 2, toString)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)

	p = Paginate([]int(nil), 1, 10, toString)
	assert.Empty(t, p.Items)
	assert.Zero(t, p.Total)
}

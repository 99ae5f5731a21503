package pager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPager_Transitions(t *testing.T) {
	t.Parallel()
	p := New([]string{"a", "b", "c", "d", "e"}, 2)

	assert.Equal(t, 3, p.Pages())
	assert.Equal(t, []string{"a", "b"}, p.Items())
	assert.False(t, p.HasPrev())
	assert.Equal(t, p, p.Prev())

	p2 := p.Next()
	assert.Equal(t, 0, p.Page(), "Next must not mutate the receiver")
	assert.Equal(t, 1, p2.Page())
	assert.Equal(t, []string{"c", "d"}, p2.Items())

	last := p2.Next()
	assert.Equal(t, []string{"e"}, last.Items())
	assert.False(t, last.HasNext())
	assert.Equal(t, last, last.Next())
	assert.Equal(t, p2, last.Prev())
}

func TestPager_Edges(t *testing.T) {
	t.Parallel()

	empty := New[int](nil, 5)
	assert.Equal(t, 1, empty.Pages())
	assert.Nil(t, empty.Items())
	assert.False(t, empty.HasNext())

	all := New([]int{1, 2, 3}, 0)
	assert.Equal(t, 1, all.Pages())
	assert.Equal(t, []int{1, 2, 3}, all.Items())

	p := New([]int{1, 2, 3, 4}, 1)
	assert.Equal(t, 3, p.Goto(99).Page())
	assert.Equal(t, 0, p.Goto(-1).Page())
}

func TestPager_Render(t *testing.T) {
	t.Parallel()
	p := New([]string{"x", "y", "z"}, 2).Next()
	got := p.Render("Items:", func(s string) string { return "- " + s })
	assert.Equal(t, "Items:\n- z\nPage 2/2", got)
}

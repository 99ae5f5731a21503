// Package pager is a small finite-state view model for paginated lists.
// Transitions are pure: Next and Prev return a new Pager and never touch the
// receiver, so a Pager can be stored in a component handler without locking.
package pager

import (
	"fmt"
	"strings"
)

// Pager is {items, pageSize, page}. The zero page is the first one.
type Pager[T any] struct {
	items    []T
	pageSize int
	page     int
}

// New returns a pager on the first page. A non-positive pageSize means one page.
func New[T any](items []T, pageSize int) Pager[T] {
	if pageSize <= 0 {
		pageSize = len(items)
		if pageSize == 0 {
			pageSize = 1
		}
	}
	return Pager[T]{items: items, pageSize: pageSize}
}

// Page returns the zero-based current page.
func (p Pager[T]) Page() int { return p.page }

// PageSize returns the page size.
func (p Pager[T]) PageSize() int { return p.pageSize }

// Pages returns the page count (at least 1).
func (p Pager[T]) Pages() int {
	if len(p.items) == 0 {
		return 1
	}
	return (len(p.items) + p.pageSize - 1) / p.pageSize
}

// HasNext reports whether Next would move.
func (p Pager[T]) HasNext() bool { return p.page < p.Pages()-1 }

// HasPrev reports whether Prev would move.
func (p Pager[T]) HasPrev() bool { return p.page > 0 }

// Next returns the pager on the following page, or p on the last page.
func (p Pager[T]) Next() Pager[T] {
	if p.HasNext() {
		p.page++
	}
	return p
}

// Prev returns the pager on the previous page, or p on the first page.
func (p Pager[T]) Prev() Pager[T] {
	if p.HasPrev() {
		p.page--
	}
	return p
}

// Goto returns the pager on page n, clamped to the valid range.
func (p Pager[T]) Goto(n int) Pager[T] {
	switch {
	case n < 0:
		n = 0
	case n >= p.Pages():
		n = p.Pages() - 1
	}
	p.page = n
	return p
}

// Items returns the items visible on the current page.
func (p Pager[T]) Items() []T {
	start := p.page * p.pageSize
	if start >= len(p.items) {
		return nil
	}
	end := start + p.pageSize
	if end > len(p.items) {
		end = len(p.items)
	}
	return p.items[start:end]
}

// Render formats the current page, one item per line, with a page footer.
func (p Pager[T]) Render(title string, format func(T) string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	for _, item := range p.Items() {
		b.WriteString(format(item))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Page %d/%d", p.page+1, p.Pages())
	return b.String()
}

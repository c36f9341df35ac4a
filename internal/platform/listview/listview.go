// Package listview filters and pages in-memory collections for display.
package listview

import "strings"

// Filter keeps the items whose key contains query, ignoring case. Order is
// preserved and an empty query keeps everything.
func Filter[T any](items []T, query string, key func(T) string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if q == "" || strings.Contains(strings.ToLower(key(it)), q) {
			out = append(out, it)
		}
	}
	return out
}

// Window returns items[offset:offset+limit], clamped to the slice bounds.
func Window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// Page is one page of a filtered list.
type Page[T any] struct {
	Items []T
	Index int // zero-based
	Size  int
	Total int
}

func (p Page[T]) PageCount() int {
	if p.Size <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.Size - 1) / p.Size
}

func (p Page[T]) HasNext() bool { return p.Index+1 < p.PageCount() }

// Paginate returns the page at index (zero-based) of the given size. An
// index past the end is clamped to the last page.
func Paginate[T any](items []T, size, index int) Page[T] {
	if size <= 0 {
		size = len(items)
		if size == 0 {
			size = 1
		}
	}
	p := Page[T]{Size: size, Total: len(items)}
	if index < 0 {
		index = 0
	}
	if last := p.PageCount() - 1; index > last {
		index = last
	}
	p.Index = index
	p.Items = Window(items, index*size, size)
	return p
}

package parser

import (
	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/ports"
)

// ItemSource hands out parsed items one at a time.
type ItemSource struct {
	items []domain.Item
	total int
}

var (
	_ ports.Source  = (*ItemSource)(nil)
	_ ports.Counter = (*ItemSource)(nil)
)

// NewItemSource wraps items; the slice is not copied.
func NewItemSource(items []domain.Item) *ItemSource {
	return &ItemSource{items: items, total: len(items)}
}

func (s *ItemSource) HasNext() bool {
	return len(s.items) > 0
}

// ShiftNext returns nil once the source is drained.
func (s *ItemSource) ShiftNext() domain.Item {
	if len(s.items) == 0 {
		return nil
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item
}

// Total is the number of items the source started with.
func (s *ItemSource) Total() int {
	return s.total
}

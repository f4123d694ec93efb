package mapping

import (
	"sort"
	"strings"

	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/markup"
	"FeedsImporter/internal/targets"
)

// SourceFunc produces the value of a source field for the current item.
type SourceFunc func(origin domain.Scope, item domain.Item, field string) (any, error)

// Sources keeps source-field callbacks by exact name and by prefix
// ("text:summary" dispatches to the "text:" callback with field "text:summary").
type Sources struct {
	exact    map[string]SourceFunc
	prefixes map[string]SourceFunc
}

// NewSources builds an empty callback set.
func NewSources() *Sources {
	return &Sources{exact: map[string]SourceFunc{}, prefixes: map[string]SourceFunc{}}
}

// DefaultSources registers the built-in callbacks: "blank", "parent:origin",
// "parent:processor" and the "text:" prefix that strips markup from an item field.
func DefaultSources() *Sources {
	s := NewSources()
	s.Register("blank", func(domain.Scope, domain.Item, string) (any, error) {
		return "", nil
	})
	s.Register("parent:origin", func(origin domain.Scope, _ domain.Item, _ string) (any, error) {
		return origin.OriginID, nil
	})
	s.Register("parent:processor", func(origin domain.Scope, _ domain.Item, _ string) (any, error) {
		return origin.ProcessorID, nil
	})
	s.RegisterPrefix("text:", func(_ domain.Scope, item domain.Item, field string) (any, error) {
		raw := ItemValue(item, strings.TrimPrefix(field, "text:"))
		return markup.PlainText(targets.Scalar(raw)), nil
	})
	return s
}

// Register adds or replaces a callback for one source field.
func (s *Sources) Register(name string, fn SourceFunc) {
	s.exact[name] = fn
}

// RegisterPrefix adds or replaces a callback for every source field starting with prefix.
func (s *Sources) RegisterPrefix(prefix string, fn SourceFunc) {
	s.prefixes[prefix] = fn
}

// Resolve returns the callback declared for a source field, if any.
func (s *Sources) Resolve(field string) (SourceFunc, bool) {
	if s == nil {
		return nil, false
	}
	if fn, ok := s.exact[field]; ok {
		return fn, true
	}

	prefixes := make([]string, 0, len(s.prefixes))
	for p := range s.prefixes {
		prefixes = append(prefixes, p)
	}
	// longest prefix first
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	for _, p := range prefixes {
		if strings.HasPrefix(field, p) {
			return s.prefixes[p], true
		}
	}
	return nil, false
}

// ItemValue is the generic accessor: the raw item value, or "" when absent.
func ItemValue(item domain.Item, field string) any {
	if v, ok := item[field]; ok && v != nil {
		return v
	}
	return ""
}

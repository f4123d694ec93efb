// Package resolver finds the record an incoming item already produced, using
// the mapping rules flagged unique as independent lookups.
package resolver

import (
	"context"
	"fmt"

	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/ports"
	"FeedsImporter/internal/targets"
)

// Lookup is one unique target and the value the current item maps onto it.
// Field is the record field the target writes to; empty means Target itself.
type Lookup struct {
	Target string
	Field  string
	Value  string
}

func (l Lookup) field() string {
	if l.Field != "" {
		return l.Field
	}
	return l.Target
}

// Resolver queries the linkage table, and optionally the entity store, for existing records.
type Resolver struct {
	linkage ports.LinkageRepository
	finder  ports.EntityFinder
}

// New wires the lookup backends. finder may be nil.
func New(linkage ports.LinkageRepository, finder ports.EntityFinder) *Resolver {
	return &Resolver{linkage: linkage, finder: finder}
}

// Resolve tries lookups in order and returns the first entity found. Lookups
// with an empty value are skipped; no match is reported as found=false.
func (r *Resolver) Resolve(ctx context.Context, scope domain.Scope, lookups []Lookup) (int64, bool, error) {
	for _, l := range lookups {
		if l.Value == "" {
			continue
		}

		var (
			id    int64
			found bool
			err   error
		)
		switch {
		case targets.IsLinkageTarget(l.field()):
			id, found, err = r.linkage.Lookup(ctx, scope, l.field(), l.Value)
		case r.finder != nil:
			id, found, err = r.finder.FindEntity(ctx, scope.EntityType, l.field(), l.Value)
		default:
			continue
		}
		if err != nil {
			return 0, false, fmt.Errorf("lookup %s: %w", l.Target, err)
		}
		if found {
			return id, true, nil
		}
	}

	return 0, false, nil
}

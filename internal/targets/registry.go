package targets

import (
	"sort"

	"FeedsImporter/internal/domain"
)

// SetterFunc writes value onto field of record. It owns the interpretation of
// value: scalar or list, append or replace, cardinality and coercion.
type SetterFunc func(record *domain.Record, field string, value any, rule domain.MappingRule) error

// Descriptor describes one target field a mapping rule can write to.
type Descriptor struct {
	ID          string
	Name        string
	Description string
	// Setter is nil until Build resolves it; nil means DefaultSetter.
	Setter         SetterFunc
	UniqueEligible bool
	// RealTarget names the underlying record field when ID is an alias.
	RealTarget string
	Required   bool
}

// Field returns the record field the descriptor populates.
func (d Descriptor) Field() string {
	if d.RealTarget != "" {
		return d.RealTarget
	}
	return d.ID
}

// Targets maps a target id to its descriptor.
type Targets map[string]Descriptor

// IDs returns the target ids sorted alphabetically.
func (t Targets) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildContext carries what contributors may need to decide which targets to advertise.
type BuildContext struct {
	ProcessorID string
	Bundle      string
}

// Contributor adds, overwrites or removes targets for an entity type.
type Contributor interface {
	AlterTargets(targets Targets, entityType string, ctx BuildContext)
}

// ContributorFunc adapts a function to Contributor.
type ContributorFunc func(targets Targets, entityType string, ctx BuildContext)

// AlterTargets calls f.
func (f ContributorFunc) AlterTargets(targets Targets, entityType string, ctx BuildContext) {
	f(targets, entityType, ctx)
}

// Registry keeps contributors in registration order.
type Registry struct {
	contributors []Contributor
}

// NewRegistry builds a registry from the given contributors.
func NewRegistry(contributors ...Contributor) *Registry {
	r := &Registry{}
	for _, c := range contributors {
		r.Register(c)
	}
	return r
}

// Register appends a contributor; it runs after every earlier one.
func (r *Registry) Register(c Contributor) {
	if c == nil {
		return
	}
	r.contributors = append(r.contributors, c)
}

// Build runs every contributor over a shared map, so the last writer of a key
// wins, then resolves default setters.
func (r *Registry) Build(entityType string, ctx BuildContext) (Targets, error) {
	targets := Targets{}
	for _, c := range r.contributors {
		c.AlterTargets(targets, entityType, ctx)
	}

	for id, desc := range targets {
		if id == "" {
			return nil, domain.Configurationf("target with empty id advertised for %s", entityType)
		}
		if desc.ID == "" {
			desc.ID = id
		}
		if desc.ID != id {
			return nil, domain.Configurationf("target %q registered under key %q", desc.ID, id)
		}
		if desc.Name == "" {
			desc.Name = id
		}
		if desc.Setter == nil {
			desc.Setter = DefaultSetter
		}
		targets[id] = desc
	}

	return targets, nil
}

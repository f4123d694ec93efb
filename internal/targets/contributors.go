package targets

// CoreTargets advertises the linkage-backed targets every entity type supports.
var CoreTargets = ContributorFunc(func(targets Targets, _ string, _ BuildContext) {
	targets[TargetURL] = Descriptor{
		ID:             TargetURL,
		Name:           "URL",
		Description:    "The external URL of the item. E.g. the feed item URL in the case of a syndication feed. May be unique.",
		UniqueEligible: true,
	}
	targets[TargetGUID] = Descriptor{
		ID:             TargetGUID,
		Name:           "GUID",
		Description:    "The globally unique identifier of the item. E.g. the feed item GUID in the case of a syndication feed. May be unique.",
		UniqueEligible: true,
	}
})

// EntityFields advertises a fixed set of fields for one entity type.
type EntityFields struct {
	EntityType string
	Fields     []Descriptor
}

// AlterTargets adds the fields when entityType matches; an empty EntityType matches all.
func (e EntityFields) AlterTargets(targets Targets, entityType string, _ BuildContext) {
	if e.EntityType != "" && e.EntityType != entityType {
		return
	}
	for _, f := range e.Fields {
		targets[f.ID] = f
	}
}

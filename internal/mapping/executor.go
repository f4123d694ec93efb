package mapping

import (
	"errors"

	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/targets"
)

// Executor applies mapping rules to a record using a built target set.
type Executor struct {
	targets targets.Targets
	sources *Sources
}

// NewExecutor wires the target descriptors and source callbacks for one run.
func NewExecutor(t targets.Targets, sources *Sources) *Executor {
	return &Executor{targets: t, sources: sources}
}

// SourceValue reads one source field through its callback or the generic accessor.
func (e *Executor) SourceValue(origin domain.Scope, item domain.Item, field string) (any, error) {
	if fn, ok := e.sources.Resolve(field); ok {
		return fn(origin, item, field)
	}
	return ItemValue(item, field), nil
}

// Apply clears every mapped target on record and then runs the rules in order.
// Re-running it over the same item yields the same record.
func (e *Executor) Apply(origin domain.Scope, rules []domain.MappingRule, item domain.Item, record *domain.Record) error {
	descs := make([]targets.Descriptor, len(rules))
	for i, rule := range rules {
		desc, ok := e.targets[rule.Target]
		if !ok {
			return domain.Configurationf("mapping %q -> %q: unknown target", rule.Source, rule.Target)
		}
		descs[i] = desc
		clearTarget(record, desc.Field())
	}

	for i, rule := range rules {
		value, err := e.SourceValue(origin, item, rule.Source)
		if err != nil {
			return asItemError(rule.Source, err)
		}

		desc := descs[i]
		setter := desc.Setter
		if setter == nil {
			setter = targets.DefaultSetter
		}
		if err := setter(record, desc.Field(), value, rule); err != nil {
			return asItemError(desc.ID, err)
		}
	}

	return nil
}

func clearTarget(record *domain.Record, field string) {
	if targets.IsLinkageTarget(field) {
		if record.Linkage == nil {
			return
		}
		if field == targets.TargetURL {
			record.Linkage.URL = ""
		} else {
			record.Linkage.GUID = ""
		}
		return
	}
	delete(record.Fields, field)
}

// asItemError keeps typed errors and reports anything else as a validation failure of field.
func asItemError(field string, err error) error {
	var (
		cfgErr     *domain.ConfigurationError
		valErr     *domain.ValidationError
		storageErr *domain.StorageError
	)
	if errors.As(err, &cfgErr) || errors.As(err, &valErr) || errors.As(err, &storageErr) {
		return err
	}
	return &domain.ValidationError{Field: field, Message: err.Error()}
}

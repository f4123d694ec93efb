package ports

import (
	"context"

	"FeedsImporter/internal/domain"
)

// Source is the stream of parsed items consumed by an import.
type Source interface {
	HasNext() bool
	// ShiftNext pops the next item; each item is returned once.
	ShiftNext() domain.Item
}

// Counter is implemented by sources that know how many items they started with.
type Counter interface {
	Total() int
}

// EntityStore creates, loads, saves and deletes target records.
type EntityStore interface {
	NewEntity(ctx context.Context, entityType, bundle string) (*domain.Record, error)
	LoadEntity(ctx context.Context, entityType string, id int64) (*domain.Record, error)
	// SaveEntity persists the record together with its linkage and assigns an id to new records.
	SaveEntity(ctx context.Context, record *domain.Record) error
	DeleteEntities(ctx context.Context, entityType string, ids []int64) error
}

// EntityFinder looks up records by a plain field value; used for unique targets
// that are not stored on the linkage.
type EntityFinder interface {
	FindEntity(ctx context.Context, entityType, field string, value any) (int64, bool, error)
}

// LinkageRepository queries the linkage table that ties records to their origin.
type LinkageRepository interface {
	Count(ctx context.Context, scope domain.Scope) (int, error)
	// Query returns up to limit linkages in the scope; limit 0 means no limit.
	Query(ctx context.Context, scope domain.Scope, limit int) ([]domain.Linkage, error)
	// Lookup finds the entity whose linkage column field ("url" or "guid") equals value.
	Lookup(ctx context.Context, scope domain.Scope, field, value string) (int64, bool, error)
	Fingerprint(ctx context.Context, entityType string, entityID int64) (string, error)
	Delete(ctx context.Context, entityType string, entityIDs []int64) error
}

// Validator checks a mapped record before it is saved.
type Validator interface {
	Validate(ctx context.Context, record *domain.Record) error
}

// PresaveHook runs before save; returning domain.ErrSkipItem drops the item silently.
type PresaveHook interface {
	Presave(ctx context.Context, origin domain.Scope, record *domain.Record, item domain.Item) error
}

// PresaveFunc adapts a function to PresaveHook.
type PresaveFunc func(ctx context.Context, origin domain.Scope, record *domain.Record, item domain.Item) error

// Presave calls f.
func (f PresaveFunc) Presave(ctx context.Context, origin domain.Scope, record *domain.Record, item domain.Item) error {
	return f(ctx, origin, record, item)
}

// EventInvoker fires named policy events (e.g. "import_<processor>") for a record.
type EventInvoker interface {
	Invoke(ctx context.Context, event string, record *domain.Record, item domain.Item) error
}

// AccessChecker decides whether the record may be saved.
type AccessChecker interface {
	CheckAccess(ctx context.Context, record *domain.Record) error
}

// Notifier publishes run summaries to Telegram or other channels.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}

// StateStore persists run state between batch steps.
type StateStore interface {
	LoadState(ctx context.Context, key string) (*domain.RunState, bool, error)
	SaveState(ctx context.Context, key string, state *domain.RunState) error
	DeleteState(ctx context.Context, key string) error
}

// Metrics records per-item outcomes and deletions.
type Metrics interface {
	RecordItem(ctx context.Context, processorID, outcome string)
	RecordDeleted(ctx context.Context, processorID string, count int)
}

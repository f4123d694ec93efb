package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"

	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/fingerprint"
	"FeedsImporter/internal/mapping"
	"FeedsImporter/internal/ports"
	"FeedsImporter/internal/resolver"
	"FeedsImporter/internal/targets"
)

// ProcessorConfig is the persisted configuration of one processor.
type ProcessorConfig struct {
	ID            string
	EntityType    string
	Bundle        string
	Mappings      []domain.MappingRule
	UpdateMode    domain.UpdateMode
	SkipHashCheck bool
	// PageSize bounds the items or deletions handled per batch step; 0 means all.
	PageSize  int
	Authorize bool
}

// ProcessorDeps wires the collaborators a processor depends on.
type ProcessorDeps struct {
	Entities  ports.EntityStore
	Linkage   ports.LinkageRepository
	Finder    ports.EntityFinder
	Targets   *targets.Registry
	Sources   *mapping.Sources
	Validator ports.Validator
	Presave   []ports.PresaveHook
	Events    ports.EventInvoker
	Access    ports.AccessChecker
	Notifier  ports.Notifier
	Metrics   ports.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// StepResult reports the outcome of one batch step.
type StepResult struct {
	Done     bool
	Progress float64
	Messages []string
}

// Processor imports items into records and clears the records it produced.
// Built targets are memoised for the lifetime of the instance.
type Processor struct {
	cfg ProcessorConfig

	entities  ports.EntityStore
	linkage   ports.LinkageRepository
	registry  *targets.Registry
	sources   *mapping.Sources
	validator ports.Validator
	presave   []ports.PresaveHook
	events    ports.EventInvoker
	access    ports.AccessChecker
	notifier  ports.Notifier
	metrics   ports.Metrics
	logger    *slog.Logger
	now       func() time.Time
	resolver  *resolver.Resolver

	targets  targets.Targets
	executor *mapping.Executor
}

// NewProcessor constructs a processor; an empty update mode defaults to skip.
func NewProcessor(cfg ProcessorConfig, deps ProcessorDeps) *Processor {
	if cfg.UpdateMode == "" {
		cfg.UpdateMode = domain.UpdateSkip
	}
	registry := deps.Targets
	if registry == nil {
		registry = targets.NewRegistry(targets.CoreTargets)
	}
	sources := deps.Sources
	if sources == nil {
		sources = mapping.DefaultSources()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Processor{
		cfg:       cfg,
		entities:  deps.Entities,
		linkage:   deps.Linkage,
		registry:  registry,
		sources:   sources,
		validator: deps.Validator,
		presave:   deps.Presave,
		events:    deps.Events,
		access:    deps.Access,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       now,
		resolver:  resolver.New(deps.Linkage, deps.Finder),
	}
}

// ID returns the processor id.
func (p *Processor) ID() string {
	return p.cfg.ID
}

// Targets returns the memoised target descriptors, building them on first use.
func (p *Processor) Targets() (targets.Targets, error) {
	if p.targets != nil {
		return p.targets, nil
	}
	built, err := p.registry.Build(p.cfg.EntityType, targets.BuildContext{
		ProcessorID: p.cfg.ID,
		Bundle:      p.cfg.Bundle,
	})
	if err != nil {
		return nil, fmt.Errorf("build targets: %w", err)
	}
	p.targets = built
	return built, nil
}

// prepare validates the configuration against the targets once per instance.
func (p *Processor) prepare() error {
	if p.executor != nil {
		return nil
	}
	if err := p.checkCollaborators(); err != nil {
		return err
	}
	if !p.cfg.UpdateMode.Valid() {
		return domain.Configurationf("processor %s: unknown update mode %q", p.cfg.ID, p.cfg.UpdateMode)
	}

	built, err := p.Targets()
	if err != nil {
		return err
	}

	for i, rule := range p.cfg.Mappings {
		if rule.Source == "" || rule.Target == "" {
			return domain.Configurationf("processor %s: mapping %d has an empty source or target", p.cfg.ID, i)
		}
		desc, ok := built[rule.Target]
		if !ok {
			return domain.Configurationf("processor %s: mapping %d targets unknown field %q", p.cfg.ID, i, rule.Target)
		}
		if rule.Unique && !desc.UniqueEligible {
			return domain.Configurationf("processor %s: target %q cannot be used as a unique key", p.cfg.ID, rule.Target)
		}
	}

	p.executor = mapping.NewExecutor(built, p.sources)
	return nil
}

func (p *Processor) checkCollaborators() error {
	switch {
	case p.cfg.ID == "":
		return domain.Configurationf("processor id is empty")
	case p.cfg.EntityType == "":
		return domain.Configurationf("processor %s: entity type is empty", p.cfg.ID)
	case p.cfg.PageSize < 0:
		return domain.Configurationf("processor %s: negative page size %d", p.cfg.ID, p.cfg.PageSize)
	case p.entities == nil || p.linkage == nil:
		return domain.Configurationf("processor %s: storage is not configured", p.cfg.ID)
	}
	return nil
}

func (p *Processor) scope(originID string) domain.Scope {
	return domain.Scope{ProcessorID: p.cfg.ID, OriginID: originID, EntityType: p.cfg.EntityType}
}

type outcome string

const (
	outcomeCreated   outcome = "created"
	outcomeUpdated   outcome = "updated"
	outcomeFailed    outcome = "failed"
	outcomeSkipped   outcome = "skipped"
	outcomeUnchanged outcome = "unchanged"
	// outcomeDropped marks items a presave hook or policy event asked to skip.
	outcomeDropped outcome = "dropped"
)

type itemResult struct {
	outcome outcome
	record  *domain.Record
	err     error
}

func failed(record *domain.Record, err error) itemResult {
	return itemResult{outcome: outcomeFailed, record: record, err: err}
}

// Import processes up to PageSize items from source for originID. Per-item
// failures are counted in state and never stop the step; configuration and
// fatal storage errors do.
func (p *Processor) Import(ctx context.Context, originID string, source ports.Source, state *domain.RunState) (StepResult, error) {
	if state == nil {
		return StepResult{}, fmt.Errorf("run state is nil")
	}
	if source == nil {
		return StepResult{}, domain.Configurationf("processor %s: no source to import from", p.cfg.ID)
	}
	if err := p.prepare(); err != nil {
		return StepResult{}, err
	}

	if state.CycleID == "" {
		state.Reset(uuid.NewString())
		if counter, ok := source.(ports.Counter); ok {
			state.Total = counter.Total()
		}
	}

	scope := p.scope(originID)
	p.debug("import step", "processor", p.cfg.ID, "origin", originID, "cycle", state.CycleID)

	for n := 0; source.HasNext() && (p.cfg.PageSize == 0 || n < p.cfg.PageSize); n++ {
		item := source.ShiftNext()
		state.Processed++

		res := p.processItem(ctx, scope, item)
		p.record(ctx, res.outcome)

		switch res.outcome {
		case outcomeCreated:
			state.Created++
		case outcomeUpdated:
			state.Updated++
		case outcomeSkipped:
			state.Skipped++
		case outcomeUnchanged:
			state.Unchanged++
		case outcomeFailed:
			if domain.IsFatal(res.err) {
				return StepResult{Progress: state.Progress}, fmt.Errorf("import %s: %w", p.cfg.ID, res.err)
			}
			state.Failed++
			p.logFailure(scope, item, res)
		}
	}

	result := StepResult{}
	if source.HasNext() {
		if state.Total > 0 {
			state.SetProgress(state.Total, state.Processed)
			// the stream is not exhausted yet
			if state.Progress >= 1 {
				state.Progress = 0.99
			}
		}
		result.Progress = state.Progress
		return result, nil
	}

	state.SetProgress(1, 1)
	state.Done = true
	result.Done = true
	result.Progress = 1
	result.Messages = importSummary(state, p.cfg.EntityType)
	p.publish(ctx, result.Messages)
	return result, nil
}

func (p *Processor) processItem(ctx context.Context, scope domain.Scope, item domain.Item) itemResult {
	lookups, err := p.uniqueLookups(scope, item)
	if err != nil {
		return failed(nil, err)
	}

	entityID, exists, err := p.resolver.Resolve(ctx, scope, lookups)
	if err != nil {
		return failed(nil, asStorageError("resolve", err))
	}
	if exists && p.cfg.UpdateMode == domain.UpdateSkip {
		return itemResult{outcome: outcomeSkipped}
	}

	hash := fingerprint.Compute(item, p.cfg.Mappings)
	if exists && !p.cfg.SkipHashCheck {
		previous, err := p.linkage.Fingerprint(ctx, scope.EntityType, entityID)
		if err != nil {
			return failed(nil, asStorageError("fingerprint", err))
		}
		if previous == hash {
			return itemResult{outcome: outcomeUnchanged}
		}
	}

	record, exists, err := p.buildRecord(ctx, scope, entityID, exists, hash)
	if err != nil {
		return failed(record, err)
	}

	if err := p.executor.Apply(scope, p.cfg.Mappings, item, record); err != nil {
		return failed(record, err)
	}

	if err := p.validate(ctx, record); err != nil {
		return failed(record, err)
	}

	for _, hook := range p.presave {
		if err := hook.Presave(ctx, scope, record, item); err != nil {
			if errors.Is(err, domain.ErrSkipItem) {
				return itemResult{outcome: outcomeDropped, record: record}
			}
			return failed(record, err)
		}
	}
	if p.events != nil {
		if err := p.events.Invoke(ctx, "import_"+p.cfg.ID, record, item); err != nil {
			if errors.Is(err, domain.ErrSkipItem) {
				return itemResult{outcome: outcomeDropped, record: record}
			}
			return failed(record, err)
		}
	}

	if p.cfg.Authorize && p.access != nil {
		if err := p.access.CheckAccess(ctx, record); err != nil {
			var accessErr *domain.AccessError
			if !errors.As(err, &accessErr) {
				err = &domain.AccessError{EntityType: record.EntityType, Reason: err.Error()}
			}
			return failed(record, err)
		}
	}

	if err := p.entities.SaveEntity(ctx, record); err != nil {
		return failed(record, asStorageError("save", err))
	}

	if exists {
		return itemResult{outcome: outcomeUpdated, record: record}
	}
	return itemResult{outcome: outcomeCreated, record: record}
}

// uniqueLookups reads the source values of the unique rules, in configured order.
func (p *Processor) uniqueLookups(scope domain.Scope, item domain.Item) ([]resolver.Lookup, error) {
	var lookups []resolver.Lookup
	for _, rule := range p.cfg.Mappings {
		if !rule.Unique {
			continue
		}
		value, err := p.executor.SourceValue(scope, item, rule.Source)
		if err != nil {
			return nil, &domain.ValidationError{Field: rule.Source, Message: err.Error()}
		}
		field := rule.Target
		if desc, ok := p.targets[rule.Target]; ok {
			field = desc.Field()
		}
		lookups = append(lookups, resolver.Lookup{Target: rule.Target, Field: field, Value: targets.Scalar(value)})
	}
	return lookups, nil
}

// buildRecord creates or loads the record and stamps its linkage. The returned
// flag is false when the linkage pointed at a record that no longer exists.
func (p *Processor) buildRecord(ctx context.Context, scope domain.Scope, entityID int64, exists bool, hash string) (*domain.Record, bool, error) {
	var (
		record *domain.Record
		err    error
	)

	if exists && p.cfg.UpdateMode != domain.UpdateReplace {
		record, err = p.entities.LoadEntity(ctx, scope.EntityType, entityID)
		if err != nil {
			return nil, exists, asStorageError("load", err)
		}
		if record == nil {
			// orphaned linkage: drop it and import the item as new
			if err := p.linkage.Delete(ctx, scope.EntityType, []int64{entityID}); err != nil {
				return nil, exists, asStorageError("delete orphaned linkage", err)
			}
			p.debug("removed orphaned linkage", "entity_type", scope.EntityType, "entity_id", entityID)
			exists = false
		}
	}

	if record == nil {
		record, err = p.entities.NewEntity(ctx, scope.EntityType, p.cfg.Bundle)
		if err != nil {
			return nil, exists, asStorageError("new entity", err)
		}
		if exists {
			record.ID = entityID
		}
	}

	if record.Linkage == nil {
		record.Linkage = &domain.Linkage{}
	}
	record.EntityType = scope.EntityType
	record.Linkage.EntityType = scope.EntityType
	record.Linkage.EntityID = record.ID
	record.Linkage.ProcessorID = scope.ProcessorID
	record.Linkage.OriginID = scope.OriginID
	record.Linkage.Fingerprint = hash
	record.Linkage.ImportedAt = p.now().UTC()

	return record, exists, nil
}

func (p *Processor) validate(ctx context.Context, record *domain.Record) error {
	for _, rule := range p.cfg.Mappings {
		desc := p.targets[rule.Target]
		if !desc.Required {
			continue
		}
		if targets.Scalar(valueOf(record, desc.Field())) == "" {
			return &domain.ValidationError{Field: desc.ID, Message: "required value is missing"}
		}
	}

	if p.validator == nil {
		return nil
	}
	if err := p.validator.Validate(ctx, record); err != nil {
		var valErr *domain.ValidationError
		if errors.As(err, &valErr) {
			return err
		}
		return &domain.ValidationError{Message: err.Error()}
	}
	return nil
}

func valueOf(record *domain.Record, field string) any {
	if targets.IsLinkageTarget(field) {
		if record.Linkage == nil {
			return nil
		}
		if field == targets.TargetURL {
			return record.Linkage.URL
		}
		return record.Linkage.GUID
	}
	return record.Field(field)
}

func asStorageError(op string, err error) error {
	var (
		storageErr *domain.StorageError
		cfgErr     *domain.ConfigurationError
	)
	if errors.As(err, &storageErr) || errors.As(err, &cfgErr) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

func (p *Processor) logFailure(scope domain.Scope, item domain.Item, res itemResult) {
	if p.logger == nil {
		return
	}
	p.logger.Error("import item failed",
		"processor", scope.ProcessorID,
		"origin", scope.OriginID,
		"error", res.err,
		"item", dumper.Sdump(item),
		"record", dumper.Sdump(res.record),
	)
}

func (p *Processor) record(ctx context.Context, o outcome) {
	if p.metrics != nil {
		p.metrics.RecordItem(ctx, p.cfg.ID, string(o))
	}
}

func (p *Processor) publish(ctx context.Context, messages []string) {
	for _, msg := range messages {
		if p.logger != nil {
			p.logger.Info(msg, "processor", p.cfg.ID)
		}
	}
	if p.notifier == nil || len(messages) == 0 {
		return
	}
	if err := p.notifier.PublishSummary(ctx, joinLines(messages)); err != nil && p.logger != nil {
		p.logger.Warn("publish summary", "processor", p.cfg.ID, "error", err)
	}
}

func (p *Processor) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"FeedsImporter/internal/config"
	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/infrastructure/parser"
	"FeedsImporter/internal/infrastructure/storage"
	"FeedsImporter/internal/infrastructure/telegram"
	"FeedsImporter/internal/logging"
	"FeedsImporter/internal/ports"
	"FeedsImporter/internal/targets"
	"FeedsImporter/internal/telemetry"
	"FeedsImporter/internal/usecase"
)

// Store is the persistence the application needs from one backend.
type Store interface {
	ports.EntityStore
	ports.EntityFinder
	ports.LinkageRepository
	ports.StateStore
}

// Options overrides collaborators; zero values are built from the config.
type Options struct {
	Logger  *slog.Logger
	Store   Store
	Fetcher *parser.Fetcher
	// Presave hooks run before every save, in order.
	Presave []ports.PresaveHook
	Access  ports.AccessChecker
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     Store
	closers   []func(context.Context) error
	processor *usecase.Processor
	runner    *usecase.Runner
	fetcher   *parser.Fetcher
	listing   parser.Listing
}

// New builds the processor and its collaborators from cfg.
func New(ctx context.Context, cfg config.Config, opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewWithWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, logger: logger, store: opts.Store, fetcher: opts.Fetcher}

	if a.store == nil {
		repo, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.store = repo
		a.closers = append(a.closers, func(context.Context) error { return repo.Close() })
	}

	shutdown, err := telemetry.Init(cfg.Telemetry.Stdout, time.Duration(cfg.Telemetry.IntervalSeconds)*time.Second)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	recorder, err := telemetry.NewRecorder(nil)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	registry, err := buildRegistry(cfg.Processor)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	listing, err := buildListing(cfg.Source)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.listing = listing
	if a.fetcher == nil {
		a.fetcher = parser.NewFetcher(nil)
	}

	var notifier ports.Notifier
	tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, cfg.Notifications.Telegram.APIBase)
	if tg.Enabled() {
		notifier = tg
	}

	a.processor = usecase.NewProcessor(processorConfig(cfg.Processor), usecase.ProcessorDeps{
		Entities: a.store,
		Linkage:  a.store,
		Finder:   a.store,
		Targets:  registry,
		Presave:  opts.Presave,
		Access:   opts.Access,
		Notifier: notifier,
		Metrics:  recorder,
		Logger:   logger.With("component", "processor"),
	})
	a.runner = usecase.NewRunner(a.processor, a.store, logger.With("component", "runner"))

	return a, nil
}

// Close releases the database and flushes metrics.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Targets lists the mapping targets the processor can write to.
func (a *Application) Targets() (targets.Targets, error) {
	return a.processor.Targets()
}

// ImportReader parses a listing document and imports its items under originID.
func (a *Application) ImportReader(ctx context.Context, originID string, r io.Reader) (*domain.RunState, usecase.StepResult, error) {
	items, err := a.listing.Parse(r)
	if err != nil {
		return nil, usecase.StepResult{}, fmt.Errorf("parse listing: %w", err)
	}
	return a.importItems(ctx, originID, items)
}

// ImportURL fetches a listing page and imports its items under originID.
func (a *Application) ImportURL(ctx context.Context, originID, pageURL string) (*domain.RunState, usecase.StepResult, error) {
	if pageURL == "" {
		pageURL = a.cfg.Source.URL
	}
	items, err := a.fetcher.Fetch(ctx, pageURL, a.listing)
	if err != nil {
		return nil, usecase.StepResult{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return a.importItems(ctx, originID, items)
}

func (a *Application) importItems(ctx context.Context, originID string, items []domain.Item) (*domain.RunState, usecase.StepResult, error) {
	a.logger.Info("import started", "processor", a.processor.ID(), "origin", originID, "items", len(items))
	return a.runner.Import(ctx, originID, parser.NewItemSource(items))
}

// Clear deletes every record imported under originID, resuming an interrupted sweep.
func (a *Application) Clear(ctx context.Context, originID string) (*domain.RunState, usecase.StepResult, error) {
	a.logger.Info("clear started", "processor", a.processor.ID(), "origin", originID)
	return a.runner.Clear(ctx, originID)
}

func processorConfig(p config.ProcessorConfig) usecase.ProcessorConfig {
	return usecase.ProcessorConfig{
		ID:            p.ID,
		EntityType:    p.EntityType,
		Bundle:        p.Bundle,
		Mappings:      p.Mappings,
		UpdateMode:    domain.UpdateMode(p.UpdateMode),
		SkipHashCheck: p.SkipHashCheck,
		PageSize:      p.PageSize,
		Authorize:     p.Authorize,
	}
}

func buildRegistry(p config.ProcessorConfig) (*targets.Registry, error) {
	fields := make([]targets.Descriptor, 0, len(p.Fields))
	for _, f := range p.Fields {
		desc, err := targets.NewField(f.ID, f.Name, f.Format, f.Cardinality)
		if err != nil {
			return nil, err
		}
		desc.UniqueEligible = f.Unique
		desc.Required = f.Required
		desc.RealTarget = f.RealTarget
		fields = append(fields, desc)
	}

	return targets.NewRegistry(
		targets.CoreTargets,
		targets.EntityFields{EntityType: p.EntityType, Fields: fields},
	), nil
}

func buildListing(src config.SourceConfig) (parser.Listing, error) {
	if src.Listing == nil {
		switch src.Preset {
		case "", "arxiv":
			return parser.ArxivListing(), nil
		default:
			return parser.Listing{}, domain.Configurationf("unknown listing preset %q", src.Preset)
		}
	}

	listing := parser.Listing{
		Item:   src.Listing.Item,
		Paired: src.Listing.Paired,
		Base:   src.Listing.Base,
		Key:    src.Listing.Key,
		Fields: make(map[string]parser.FieldRule, len(src.Listing.Fields)),
	}
	for name, f := range src.Listing.Fields {
		listing.Fields[name] = parser.FieldRule{
			Selector:   f.Selector,
			Attr:       f.Attr,
			HTML:       f.HTML,
			Multiple:   f.Multiple,
			TrimPrefix: f.TrimPrefix,
			Format:     f.Format,
		}
	}
	return listing, nil
}

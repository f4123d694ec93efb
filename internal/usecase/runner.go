package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/ports"
)

// Runner drives a processor's batch steps to completion, persisting run state
// between steps the way an external batch scheduler would.
type Runner struct {
	processor *Processor
	states    ports.StateStore
	logger    *slog.Logger
}

// NewRunner wires a processor with a state store; states may be nil.
func NewRunner(processor *Processor, states ports.StateStore, logger *slog.Logger) *Runner {
	return &Runner{processor: processor, states: states, logger: logger}
}

// StateKey names the persisted state of one cycle.
func StateKey(stage, processorID, originID string) string {
	return fmt.Sprintf("%s:%s:%s", stage, processorID, originID)
}

// Import runs a fresh import cycle over source. Streams cannot be resumed, so
// any state left by an interrupted cycle is discarded first.
func (r *Runner) Import(ctx context.Context, originID string, source ports.Source) (*domain.RunState, StepResult, error) {
	key := StateKey("import", r.processor.ID(), originID)
	state := &domain.RunState{}

	step := func(ctx context.Context) (StepResult, error) {
		return r.processor.Import(ctx, originID, source, state)
	}
	result, err := r.loop(ctx, key, state, step)
	return state, result, err
}

// Clear runs, or resumes, a clear cycle for originID.
func (r *Runner) Clear(ctx context.Context, originID string) (*domain.RunState, StepResult, error) {
	key := StateKey("clear", r.processor.ID(), originID)
	state := &domain.RunState{}

	if r.states != nil {
		saved, ok, err := r.states.LoadState(ctx, key)
		if err != nil {
			return nil, StepResult{}, fmt.Errorf("load state %s: %w", key, err)
		}
		if ok && !saved.Done {
			state = saved
			r.debug("resume clear", "key", key, "deleted", state.Deleted, "total", state.TotalToDelete)
		}
	}

	step := func(ctx context.Context) (StepResult, error) {
		return r.processor.Clear(ctx, originID, state)
	}
	result, err := r.loop(ctx, key, state, step)
	return state, result, err
}

func (r *Runner) loop(ctx context.Context, key string, state *domain.RunState, step func(context.Context) (StepResult, error)) (StepResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return StepResult{Progress: state.Progress}, err
		}

		result, err := step(ctx)
		if err != nil {
			return result, err
		}
		r.debug("batch step", "key", key, "progress", result.Progress)

		if result.Done {
			if r.states != nil {
				if err := r.states.DeleteState(ctx, key); err != nil {
					return result, fmt.Errorf("delete state %s: %w", key, err)
				}
			}
			return result, nil
		}

		if r.states != nil {
			if err := r.states.SaveState(ctx, key, state); err != nil {
				return result, fmt.Errorf("save state %s: %w", key, err)
			}
		}
	}
}

func (r *Runner) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

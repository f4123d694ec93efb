package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"FeedsImporter/internal/domain"
)

// Clear deletes up to PageSize records produced for originID, together with
// their linkage. The total is counted on the first step of a cycle; a page
// that finds nothing left completes the sweep even if the count drifted.
func (p *Processor) Clear(ctx context.Context, originID string, state *domain.RunState) (StepResult, error) {
	if state == nil {
		return StepResult{}, fmt.Errorf("run state is nil")
	}
	if err := p.checkCollaborators(); err != nil {
		return StepResult{}, err
	}

	scope := p.scope(originID)
	if !state.Initialized {
		if state.CycleID == "" {
			state.Reset(uuid.NewString())
		}
		total, err := p.linkage.Count(ctx, scope)
		if err != nil {
			return StepResult{}, fmt.Errorf("clear %s: %w", p.cfg.ID, asStorageError("count", err))
		}
		state.TotalToDelete = total
		state.Initialized = true
	}

	rows, err := p.linkage.Query(ctx, scope, p.cfg.PageSize)
	if err != nil {
		return StepResult{}, fmt.Errorf("clear %s: %w", p.cfg.ID, asStorageError("query", err))
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.EntityID)
	}

	if len(ids) > 0 {
		if err := p.entities.DeleteEntities(ctx, scope.EntityType, ids); err != nil {
			return StepResult{}, fmt.Errorf("clear %s: %w", p.cfg.ID, asStorageError("delete", err))
		}
		if err := p.linkage.Delete(ctx, scope.EntityType, ids); err != nil {
			return StepResult{}, fmt.Errorf("clear %s: %w", p.cfg.ID, asStorageError("delete linkage", err))
		}
		state.Deleted += len(ids)
		if p.metrics != nil {
			p.metrics.RecordDeleted(ctx, p.cfg.ID, len(ids))
		}
		p.debug("cleared page", "processor", p.cfg.ID, "origin", originID, "deleted", len(ids))
	}

	// rows added after the count was taken
	if state.Deleted > state.TotalToDelete {
		state.TotalToDelete = state.Deleted
	}

	if len(ids) > 0 && state.Deleted < state.TotalToDelete {
		state.SetProgress(state.TotalToDelete, state.Deleted)
		return StepResult{Progress: state.Progress}, nil
	}

	state.SetProgress(state.TotalToDelete, state.TotalToDelete)
	state.Done = true
	result := StepResult{Done: true, Progress: 1, Messages: clearSummary(state, p.cfg.EntityType)}
	p.publish(ctx, result.Messages)
	return result, nil
}

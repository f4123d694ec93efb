package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"FeedsImporter/internal/domain"
)

// LoadState reads the run state stored under key.
func (r *SQLRepository) LoadState(ctx context.Context, key string) (*domain.RunState, bool, error) {
	query, args, err := r.builder.
		Select("payload").
		From(stateTable).
		Where(sq.Eq{"state_key": key}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build state query: %w", err)
	}

	var payload string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("load state", err)
	}

	var state domain.RunState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, false, storageErr("decode state", err)
	}
	return &state, true, nil
}

// SaveState upserts the run state under key.
func (r *SQLRepository) SaveState(ctx context.Context, key string, state *domain.RunState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	query, args, err := r.builder.
		Insert(stateTable).
		Columns("state_key", "payload", "updated_at").
		Values(key, string(payload), r.now().Unix()).
		Suffix("ON CONFLICT (state_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build state upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return storageErr("save state", err)
	}
	return nil
}

// DeleteState discards the run state under key.
func (r *SQLRepository) DeleteState(ctx context.Context, key string) error {
	query, args, err := r.builder.
		Delete(stateTable).
		Where(sq.Eq{"state_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build state delete: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return storageErr("delete state", err)
	}
	return nil
}

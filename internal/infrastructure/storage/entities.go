package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"FeedsImporter/internal/domain"
)

// NewEntity returns an unsaved record of the given type.
func (r *SQLRepository) NewEntity(_ context.Context, entityType, bundle string) (*domain.Record, error) {
	return &domain.Record{EntityType: entityType, Bundle: bundle, Fields: map[string]any{}}, nil
}

// LoadEntity reads a record and its linkage; a missing record yields nil, nil.
func (r *SQLRepository) LoadEntity(ctx context.Context, entityType string, id int64) (*domain.Record, error) {
	query, args, err := r.builder.
		Select("bundle", "fields").
		From(entitiesTable).
		Where(sq.Eq{"id": id, "entity_type": entityType}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load query: %w", err)
	}

	var (
		bundle string
		raw    string
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&bundle, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("load entity", err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, storageErr("decode entity", err)
	}

	record := &domain.Record{ID: id, EntityType: entityType, Bundle: bundle, Fields: fields}
	link, ok, err := r.linkageFor(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	if ok {
		record.Linkage = &link
	}
	return record, nil
}

// SaveEntity inserts or updates the record and upserts its linkage in one transaction.
func (r *SQLRepository) SaveEntity(ctx context.Context, record *domain.Record) error {
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return &domain.ValidationError{Message: fmt.Sprintf("fields are not serialisable: %v", err)}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin save", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now().Unix()
	insert := r.builder.Insert(entitiesTable)
	if record.ID == 0 {
		insert = insert.
			Columns("entity_type", "bundle", "fields", "created_at", "updated_at").
			Values(record.EntityType, record.Bundle, string(fields), now, now)
	} else {
		insert = insert.
			Columns("id", "entity_type", "bundle", "fields", "created_at", "updated_at").
			Values(record.ID, record.EntityType, record.Bundle, string(fields), now, now).
			Suffix("ON CONFLICT (id) DO UPDATE SET bundle = excluded.bundle, fields = excluded.fields, updated_at = excluded.updated_at")
	}
	query, args, err := insert.Suffix("RETURNING id").ToSql()
	if err != nil {
		return fmt.Errorf("build save query: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return storageErr("save entity", err)
	}

	if record.Linkage != nil {
		record.Linkage.EntityType = record.EntityType
		record.Linkage.EntityID = id
		linkID, err := r.upsertLinkage(ctx, tx, *record.Linkage)
		if err != nil {
			return err
		}
		record.Linkage.ID = linkID
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit save", err)
	}
	record.ID = id
	return nil
}

// DeleteEntities removes records by id.
func (r *SQLRepository) DeleteEntities(ctx context.Context, entityType string, ids []int64) error {
	return r.deleteByIDs(ctx, entitiesTable, "id", entityType, ids, "delete entities")
}

// FindEntity returns the oldest record whose JSON field equals value, compared as text.
func (r *SQLRepository) FindEntity(ctx context.Context, entityType, field string, value any) (int64, bool, error) {
	column := sq.Expr("CAST(json_extract(fields, ?) AS TEXT) = ?", "$."+strconv.Quote(field), fmt.Sprint(value))
	if r.driver == DriverPostgres {
		column = sq.Expr("(fields::jsonb ->> ?) = ?", field, fmt.Sprint(value))
	}

	query, args, err := r.builder.
		Select("id").
		From(entitiesTable).
		Where(sq.Eq{"entity_type": entityType}).
		Where(column).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build find query: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageErr("find entity", err)
	}
	return id, true, nil
}

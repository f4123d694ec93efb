package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FeedsImporter/internal/domain"
)

var linkageColumns = []string{
	"id", "entity_type", "entity_id", "processor_id", "origin_id",
	"fingerprint", "imported_at", "url", "guid",
}

func scopeFilter(scope domain.Scope) sq.Eq {
	return sq.Eq{
		"processor_id": scope.ProcessorID,
		"origin_id":    scope.OriginID,
		"entity_type":  scope.EntityType,
	}
}

// Count returns the number of linkage rows in scope.
func (r *SQLRepository) Count(ctx context.Context, scope domain.Scope) (int, error) {
	query, args, err := r.builder.
		Select("COUNT(*)").
		From(linkageTable).
		Where(scopeFilter(scope)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, storageErr("count linkage", err)
	}
	return total, nil
}

// Query returns the oldest linkage rows in scope, at most limit of them (0 = all).
func (r *SQLRepository) Query(ctx context.Context, scope domain.Scope, limit int) ([]domain.Linkage, error) {
	builder := r.builder.
		Select(linkageColumns...).
		From(linkageTable).
		Where(scopeFilter(scope)).
		OrderBy("id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build linkage query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query linkage", err)
	}

	var result []domain.Linkage
	for rows.Next() {
		link, err := scanLinkage(rows)
		if err != nil {
			_ = rows.Close()
			return nil, storageErr("scan linkage", err)
		}
		result = append(result, link)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, storageErr("iterate linkage", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, storageErr("close linkage rows", closeErr)
	}

	return result, nil
}

// Lookup finds the entity whose linkage url or guid equals value.
func (r *SQLRepository) Lookup(ctx context.Context, scope domain.Scope, field, value string) (int64, bool, error) {
	if field != "url" && field != "guid" {
		return 0, false, domain.Configurationf("linkage has no %q column", field)
	}

	filter := scopeFilter(scope)
	filter[field] = value
	query, args, err := r.builder.
		Select("entity_id").
		From(linkageTable).
		Where(filter).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build lookup query: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageErr("lookup linkage", err)
	}
	return id, true, nil
}

// Fingerprint returns the stored fingerprint of an entity, "" when it has none.
func (r *SQLRepository) Fingerprint(ctx context.Context, entityType string, entityID int64) (string, error) {
	link, ok, err := r.linkageFor(ctx, entityType, entityID)
	if err != nil || !ok {
		return "", err
	}
	return link.Fingerprint, nil
}

// Delete removes the linkage rows of the given entities.
func (r *SQLRepository) Delete(ctx context.Context, entityType string, entityIDs []int64) error {
	return r.deleteByIDs(ctx, linkageTable, "entity_id", entityType, entityIDs, "delete linkage")
}

func (r *SQLRepository) linkageFor(ctx context.Context, entityType string, entityID int64) (domain.Linkage, bool, error) {
	query, args, err := r.builder.
		Select(linkageColumns...).
		From(linkageTable).
		Where(sq.Eq{"entity_type": entityType, "entity_id": entityID}).
		ToSql()
	if err != nil {
		return domain.Linkage{}, false, fmt.Errorf("build linkage load: %w", err)
	}

	link, err := scanLinkage(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Linkage{}, false, nil
	}
	if err != nil {
		return domain.Linkage{}, false, storageErr("load linkage", err)
	}
	return link, true, nil
}

func (r *SQLRepository) upsertLinkage(ctx context.Context, tx *sql.Tx, link domain.Linkage) (int64, error) {
	query, args, err := r.builder.
		Insert(linkageTable).
		Columns("entity_type", "entity_id", "processor_id", "origin_id", "fingerprint", "imported_at", "url", "guid").
		Values(link.EntityType, link.EntityID, link.ProcessorID, link.OriginID,
			link.Fingerprint, link.ImportedAt.Unix(), link.URL, link.GUID).
		Suffix(`ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			processor_id = excluded.processor_id,
			origin_id = excluded.origin_id,
			fingerprint = excluded.fingerprint,
			imported_at = excluded.imported_at,
			url = excluded.url,
			guid = excluded.guid`).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build linkage upsert: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, storageErr("save linkage", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLinkage(row rowScanner) (domain.Linkage, error) {
	var (
		link     domain.Linkage
		imported int64
	)
	if err := row.Scan(&link.ID, &link.EntityType, &link.EntityID, &link.ProcessorID, &link.OriginID,
		&link.Fingerprint, &imported, &link.URL, &link.GUID); err != nil {
		return domain.Linkage{}, err
	}
	link.ImportedAt = time.Unix(imported, 0).UTC()
	return link, nil
}

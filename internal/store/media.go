package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/adboard/apiserver/types"
)

// MediaRepository is the media catalog: one row per storage path holding
// metadata and a copy of the bytes.
type MediaRepository struct {
	db *sql.DB
}

func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Upsert writes asset keyed by its storage path, replacing any row already
// at that path, and drops the owner's rows at other paths. It returns the
// stored row and the storage paths of the dropped rows.
func (r *MediaRepository) Upsert(ctx context.Context, asset types.MediaAsset) (types.MediaAsset, []string, error) {
	asset.SizeBytes = int64(len(asset.Data))
	asset.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.MediaAsset{}, nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const upsert = `
		INSERT INTO media_assets (owner_kind, owner_ref, storage_path, content_type, size_bytes, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (storage_path) DO UPDATE
		SET owner_kind = EXCLUDED.owner_kind,
			owner_ref = EXCLUDED.owner_ref,
			content_type = EXCLUDED.content_type,
			size_bytes = EXCLUDED.size_bytes,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`
	if err := tx.QueryRowContext(
		ctx,
		upsert,
		asset.OwnerKind,
		asset.OwnerRef,
		asset.StoragePath,
		asset.ContentType,
		asset.SizeBytes,
		asset.Data,
		asset.UpdatedAt,
	).Scan(&asset.ID, &asset.CreatedAt); err != nil {
		return types.MediaAsset{}, nil, err
	}

	const prune = `
		DELETE FROM media_assets
		WHERE owner_kind = $1 AND owner_ref = $2 AND storage_path <> $3
		RETURNING storage_path`
	rows, err := tx.QueryContext(ctx, prune, asset.OwnerKind, asset.OwnerRef, asset.StoragePath)
	if err != nil {
		return types.MediaAsset{}, nil, err
	}
	var replaced []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			_ = rows.Close()
			return types.MediaAsset{}, nil, err
		}
		replaced = append(replaced, path)
	}
	if err := rows.Close(); err != nil {
		return types.MediaAsset{}, nil, err
	}
	if err := rows.Err(); err != nil {
		return types.MediaAsset{}, nil, err
	}

	if err := tx.Commit(); err != nil {
		return types.MediaAsset{}, nil, err
	}
	return asset, replaced, nil
}

// GetByPath looks up the row whose storage path equals path exactly.
func (r *MediaRepository) GetByPath(ctx context.Context, path string) (types.MediaAsset, error) {
	const query = `
		SELECT id, owner_kind, owner_ref, storage_path, content_type, size_bytes, data, created_at, updated_at
		FROM media_assets
		WHERE storage_path = $1`
	var asset types.MediaAsset
	err := r.db.QueryRowContext(ctx, query, path).Scan(
		&asset.ID,
		&asset.OwnerKind,
		&asset.OwnerRef,
		&asset.StoragePath,
		&asset.ContentType,
		&asset.SizeBytes,
		&asset.Data,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.MediaAsset{}, ErrNotFound
		}
		return types.MediaAsset{}, err
	}
	return asset, nil
}

// ListPaths returns every storage path in the catalog.
func (r *MediaRepository) ListPaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT storage_path FROM media_assets ORDER BY storage_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

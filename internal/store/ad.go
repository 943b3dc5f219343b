package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adboard/apiserver/types"
)

// AdRepository handles persistence for ads.
type AdRepository struct {
	db *sql.DB
}

func NewAdRepository(db *sql.DB) *AdRepository {
	return &AdRepository{db: db}
}

const adColumns = `id, author_id, title, price, description, image_path, created_at, updated_at`

func scanAd(row interface{ Scan(...any) error }) (types.Ad, error) {
	var ad types.Ad
	err := row.Scan(
		&ad.ID,
		&ad.AuthorID,
		&ad.Title,
		&ad.Price,
		&ad.Description,
		&ad.ImagePath,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Ad{}, ErrNotFound
		}
		return types.Ad{}, err
	}
	return ad, nil
}

func (r *AdRepository) List(ctx context.Context) ([]types.Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads ORDER BY id`
	return r.list(ctx, query)
}

func (r *AdRepository) ListByAuthor(ctx context.Context, authorID int) ([]types.Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads WHERE author_id = $1 ORDER BY id`
	return r.list(ctx, query, authorID)
}

func (r *AdRepository) list(ctx context.Context, query string, args ...any) ([]types.Ad, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ads := make([]types.Ad, 0)
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ads, nil
}

func (r *AdRepository) Get(ctx context.Context, id int) (types.Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads WHERE id = $1`
	return scanAd(r.db.QueryRowContext(ctx, query, id))
}

func (r *AdRepository) Create(ctx context.Context, ad types.Ad) (types.Ad, error) {
	now := time.Now()
	ad.CreatedAt = now
	ad.UpdatedAt = now

	const query = `
		INSERT INTO ads (author_id, title, price, description, image_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		ad.AuthorID,
		ad.Title,
		ad.Price,
		ad.Description,
		ad.ImagePath,
		ad.CreatedAt,
		ad.UpdatedAt,
	).Scan(&ad.ID); err != nil {
		return types.Ad{}, err
	}
	return ad, nil
}

// Update writes the editable fields of ad and returns the stored row.
// author_id is never written after creation.
func (r *AdRepository) Update(ctx context.Context, ad types.Ad) (types.Ad, error) {
	const query = `
		UPDATE ads
		SET title = $1,
			price = $2,
			description = $3,
			updated_at = $4
		WHERE id = $5
		RETURNING ` + adColumns
	return scanAd(r.db.QueryRowContext(
		ctx,
		query,
		ad.Title,
		ad.Price,
		ad.Description,
		time.Now(),
		ad.ID,
	))
}

// SetImagePath records the storage path of the ad's image.
func (r *AdRepository) SetImagePath(ctx context.Context, id int, path string) error {
	const query = `UPDATE ads SET image_path = $1, updated_at = $2 WHERE id = $3`
	return execAffectingOne(ctx, r.db, query, path, time.Now(), id)
}

// Delete removes the ad together with its comments and its media catalog
// rows in one transaction. It returns the storage paths whose catalog rows
// were removed; the blobs are left for the orphan sweep.
func (r *AdRepository) Delete(ctx context.Context, id int) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE ad_id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete comments: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`DELETE FROM media_assets WHERE owner_kind = $1 AND owner_ref = $2 RETURNING storage_path`,
		types.OwnerAd, id)
	if err != nil {
		return nil, fmt.Errorf("delete media: %w", err)
	}
	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			_ = rows.Close()
			return nil, err
		}
		paths = append(paths, path)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := execAffectingOne(ctx, tx, `DELETE FROM ads WHERE id = $1`, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/adboard/apiserver/types"
)

// CommentRepository handles persistence for comments.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByAd returns the ad's comments ordered by id. An ad without comments
// yields an empty slice.
func (r *CommentRepository) ListByAd(ctx context.Context, adID int) ([]types.Comment, error) {
	const query = `
		SELECT id, ad_id, author_id, text, created_at
		FROM comments
		WHERE ad_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, adID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	for rows.Next() {
		var c types.Comment
		if err := rows.Scan(&c.ID, &c.AdID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	comment.CreatedAt = time.Now()

	const query = `
		INSERT INTO comments (ad_id, author_id, text, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		comment.AdID,
		comment.AuthorID,
		comment.Text,
		comment.CreatedAt,
	).Scan(&comment.ID); err != nil {
		return types.Comment{}, err
	}
	return comment, nil
}

// UpdateText replaces the text of the comment identified by (adID, id).
func (r *CommentRepository) UpdateText(ctx context.Context, adID, id int, text string) (types.Comment, error) {
	const query = `
		UPDATE comments
		SET text = $1
		WHERE id = $2 AND ad_id = $3
		RETURNING id, ad_id, author_id, text, created_at`
	var c types.Comment
	err := r.db.QueryRowContext(ctx, query, text, id, adID).Scan(&c.ID, &c.AdID, &c.AuthorID, &c.Text, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return c, nil
}

func (r *CommentRepository) Delete(ctx context.Context, adID, id int) error {
	const query = `DELETE FROM comments WHERE id = $1 AND ad_id = $2`
	return execAffectingOne(ctx, r.db, query, id, adID)
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/adboard/apiserver/types"
)

// CommentRepository defines persistence operations for comments. Every
// mutation is scoped by the owning ad.
type CommentRepository interface {
	ListByAd(ctx context.Context, adID int) ([]types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	UpdateText(ctx context.Context, adID, id int, text string) (types.Comment, error)
	Delete(ctx context.Context, adID, id int) error
}

// CommentService encapsulates comment use-cases.
type CommentService struct {
	comments CommentRepository
	ads      AdLookup
	identity *IdentityResolver
}

func NewCommentService(comments CommentRepository, ads AdLookup, identity *IdentityResolver) *CommentService {
	return &CommentService{
		comments: comments,
		ads:      ads,
		identity: identity,
	}
}

func (s *CommentService) ListByAd(ctx context.Context, adID int) ([]types.Comment, error) {
	if err := s.requireAd(ctx, adID); err != nil {
		return nil, err
	}
	return s.comments.ListByAd(ctx, adID)
}

// Create adds a comment by principal to the ad.
func (s *CommentService) Create(ctx context.Context, principal types.Principal, adID int, text string) (types.Comment, error) {
	text, err := commentText(text)
	if err != nil {
		return types.Comment{}, err
	}
	if err := s.requireAd(ctx, adID); err != nil {
		return types.Comment{}, err
	}
	author, err := s.identity.UserFor(ctx, principal)
	if err != nil {
		return types.Comment{}, err
	}
	return s.comments.Create(ctx, types.Comment{
		AdID:     adID,
		AuthorID: author.ID,
		Text:     text,
	})
}

func (s *CommentService) Update(ctx context.Context, adID, id int, text string) (types.Comment, error) {
	text, err := commentText(text)
	if err != nil {
		return types.Comment{}, err
	}
	if err := s.requireAd(ctx, adID); err != nil {
		return types.Comment{}, err
	}
	comment, err := s.comments.UpdateText(ctx, adID, id, text)
	if err != nil {
		return types.Comment{}, notFoundAs(err, ErrCommentNotFound)
	}
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, adID, id int) error {
	if err := s.requireAd(ctx, adID); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, adID, id); err != nil {
		return notFoundAs(err, ErrCommentNotFound)
	}
	return nil
}

func (s *CommentService) requireAd(ctx context.Context, adID int) error {
	if _, err := s.ads.Get(ctx, adID); err != nil {
		return notFoundAs(err, ErrAdNotFound)
	}
	return nil
}

func commentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: comment text is required", ErrInvalidInput)
	}
	return text, nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adboard/apiserver/internal/mq"
	"github.com/adboard/apiserver/types"
)

// AdRepository defines persistence operations for ads.
type AdRepository interface {
	List(ctx context.Context) ([]types.Ad, error)
	ListByAuthor(ctx context.Context, authorID int) ([]types.Ad, error)
	Get(ctx context.Context, id int) (types.Ad, error)
	Create(ctx context.Context, ad types.Ad) (types.Ad, error)
	Update(ctx context.Context, ad types.Ad) (types.Ad, error)
	SetImagePath(ctx context.Context, id int, path string) error
	// Delete removes the ad with its comments and media catalog rows and
	// returns the storage paths that lost their row.
	Delete(ctx context.Context, id int) ([]string, error)
}

// AdService encapsulates ad use-cases. Callers are expected to have run the
// ownership checks for the ad already.
type AdService struct {
	ads      AdRepository
	identity *IdentityResolver
	media    *MediaStore
	events   EventPublisher
}

func NewAdService(ads AdRepository, identity *IdentityResolver, media *MediaStore, events EventPublisher) *AdService {
	return &AdService{
		ads:      ads,
		identity: identity,
		media:    media,
		events:   events,
	}
}

func (s *AdService) List(ctx context.Context) ([]types.Ad, error) {
	return s.ads.List(ctx)
}

// ListByAuthor returns the ads posted by principal.
func (s *AdService) ListByAuthor(ctx context.Context, principal types.Principal) ([]types.Ad, error) {
	user, err := s.identity.UserFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	return s.ads.ListByAuthor(ctx, user.ID)
}

func (s *AdService) Get(ctx context.Context, id int) (types.Ad, error) {
	ad, err := s.ads.Get(ctx, id)
	if err != nil {
		return types.Ad{}, notFoundAs(err, ErrAdNotFound)
	}
	return ad, nil
}

// Create stores a new ad authored by principal. When image is non-nil it
// is stored under the new ad and its path recorded.
func (s *AdService) Create(ctx context.Context, principal types.Principal, props types.AdProperties, image *Upload) (types.Ad, error) {
	if err := validateAdProperties(props); err != nil {
		return types.Ad{}, err
	}
	if image != nil && len(image.Data) == 0 {
		return types.Ad{}, fmt.Errorf("%w: empty upload", ErrInvalidMedia)
	}
	author, err := s.identity.UserFor(ctx, principal)
	if err != nil {
		return types.Ad{}, err
	}

	ad, err := s.ads.Create(ctx, types.Ad{
		AuthorID:    author.ID,
		Title:       strings.TrimSpace(props.Title),
		Price:       props.Price,
		Description: props.Description,
	})
	if err != nil {
		return types.Ad{}, err
	}
	slog.InfoContext(ctx, "ad created", "ad_id", ad.ID, "author_id", author.ID)

	if image == nil {
		return ad, nil
	}
	withImage, err := s.attachImage(ctx, ad, *image)
	if err != nil && withImage.ImagePath == "" {
		// Only a publish failure gets this far with the path recorded.
		s.discard(ctx, ad.ID)
		return types.Ad{}, err
	}
	return withImage, err
}

// Update overwrites the title, price and description of the ad.
func (s *AdService) Update(ctx context.Context, id int, props types.AdProperties) (types.Ad, error) {
	if err := validateAdProperties(props); err != nil {
		return types.Ad{}, err
	}
	ad, err := s.Get(ctx, id)
	if err != nil {
		return types.Ad{}, err
	}
	ad.Title = strings.TrimSpace(props.Title)
	ad.Price = props.Price
	ad.Description = props.Description

	updated, err := s.ads.Update(ctx, ad)
	if err != nil {
		return types.Ad{}, notFoundAs(err, ErrAdNotFound)
	}
	return updated, nil
}

// UpdateImage replaces the ad's image.
func (s *AdService) UpdateImage(ctx context.Context, id int, image Upload) (types.Ad, error) {
	ad, err := s.Get(ctx, id)
	if err != nil {
		return types.Ad{}, err
	}
	return s.attachImage(ctx, ad, image)
}

// Delete removes the ad, its comments and its media catalog rows. Blobs
// are removed later by the sweep or by an ad.deleted consumer.
func (s *AdService) Delete(ctx context.Context, id int) error {
	paths, err := s.ads.Delete(ctx, id)
	if err != nil {
		return notFoundAs(err, ErrAdNotFound)
	}
	slog.InfoContext(ctx, "ad deleted", "ad_id", id, "media", len(paths))
	if err := s.media.Forget(ctx, paths...); err != nil {
		return fmt.Errorf("evict media cache: %w", err)
	}

	if s.events == nil {
		return nil
	}
	if _, err := s.events.PublishEvent(ctx, mq.ChannelAdDeleted, mq.AdDeleted{AdID: id, MediaPaths: paths}); err != nil {
		return fmt.Errorf("publish ad event: %w", err)
	}
	return nil
}

// attachImage stores image for ad and records its path. A publish failure
// from the media store is returned after the path has been recorded.
func (s *AdService) attachImage(ctx context.Context, ad types.Ad, image Upload) (types.Ad, error) {
	owner := types.MediaOwner{Kind: types.OwnerAd, Ref: ad.ID, Key: ad.Title}
	path, storeErr := s.media.Store(ctx, owner, image.Filename, image.ContentType, image.Data)
	if path == "" {
		return ad, storeErr
	}
	if err := s.ads.SetImagePath(ctx, ad.ID, path); err != nil {
		return ad, notFoundAs(err, ErrAdNotFound)
	}
	ad.ImagePath = path
	return ad, storeErr
}

// discard removes an ad left behind by a failed create, together with any
// catalog rows stored for it.
func (s *AdService) discard(ctx context.Context, id int) {
	paths, err := s.ads.Delete(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to discard ad", "ad_id", id, "error", err)
		return
	}
	if err := s.media.Forget(ctx, paths...); err != nil {
		slog.WarnContext(ctx, "failed to evict discarded ad media", "ad_id", id, "error", err)
	}
	slog.InfoContext(ctx, "ad discarded", "ad_id", id)
}

func validateAdProperties(props types.AdProperties) error {
	if strings.TrimSpace(props.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if props.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	return nil
}

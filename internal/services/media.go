package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"unicode"

	"github.com/adboard/apiserver/internal/mq"
	"github.com/adboard/apiserver/internal/storage"
	"github.com/adboard/apiserver/types"
)

const (
	maxSlugRunes  = 64
	maxExtRunes   = 16
	fallbackSlug  = "unnamed"
	fallbackExt   = "bin"
	fallbackMedia = "application/octet-stream"
)

// Preferred extensions for common image types. mime.ExtensionsByType
// returns every registered alias in lexical order, which would make
// image/jpeg come out as "jfif" on some systems.
var preferredExt = map[string]string{
	"image/jpeg":    "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/bmp":     "bmp",
	"image/svg+xml": "svg",
}

// BlobStorage is the object store media blobs are written to.
type BlobStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// MediaRepository is the catalog of stored media, keyed by storage path.
type MediaRepository interface {
	// Upsert inserts or overwrites the row at asset.StoragePath and removes
	// the owner's rows at any other path, returning those paths.
	Upsert(ctx context.Context, asset types.MediaAsset) (types.MediaAsset, []string, error)
	GetByPath(ctx context.Context, path string) (types.MediaAsset, error)
	ListPaths(ctx context.Context) ([]string, error)
}

// EventPublisher publishes domain events. A nil publisher disables events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, payload any) (string, error)
}

// MediaStore persists uploaded images for ads and users.
//
// A storage path is derived only from the owner and the file type, so
// repeat uploads for the same owner overwrite in place. Concurrent uploads
// for one owner are last-writer-wins; callers that need ordering must
// serialize them.
type MediaStore struct {
	blobs   BlobStorage
	catalog MediaRepository
	events  EventPublisher
}

func NewMediaStore(blobs BlobStorage, catalog MediaRepository, events EventPublisher) *MediaStore {
	return &MediaStore{
		blobs:   blobs,
		catalog: catalog,
		events:  events,
	}
}

// Store writes data for owner and returns its storage path. The blob is
// written before the catalog row, so a failed blob write leaves the
// catalog untouched.
func (s *MediaStore) Store(ctx context.Context, owner types.MediaOwner, filename, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrInvalidMedia)
	}
	if owner.Kind.Dir() == "" {
		return "", fmt.Errorf("%w: unknown owner kind %d", ErrInvalidMedia, int(owner.Kind))
	}

	contentType = normalizeContentType(contentType, data)
	key := StoragePath(owner, filename, contentType)

	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrStorageIO, key, err)
	}

	asset, replaced, err := s.catalog.Upsert(ctx, types.MediaAsset{
		OwnerKind:   owner.Kind,
		OwnerRef:    owner.Ref,
		StoragePath: key,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Data:        data,
	})
	if err != nil {
		return "", fmt.Errorf("record media %s: %w", key, err)
	}

	slog.InfoContext(ctx, "media stored",
		"path", asset.StoragePath,
		"owner_kind", owner.Kind.String(),
		"owner_ref", owner.Ref,
		"size", asset.SizeBytes,
		"replaced", len(replaced),
	)

	if s.events != nil {
		event := mq.MediaStored{
			StoragePath: asset.StoragePath,
			OwnerKind:   owner.Kind.String(),
			OwnerRef:    owner.Ref,
			ContentType: asset.ContentType,
			SizeBytes:   asset.SizeBytes,
			Replaced:    replaced,
		}
		if _, err := s.events.PublishEvent(ctx, mq.ChannelMediaStored, event); err != nil {
			return key, fmt.Errorf("publish media event: %w", err)
		}
	}
	return key, nil
}

// catalogEvicter is implemented by catalogs that keep rows in a cache.
type catalogEvicter interface {
	Evict(ctx context.Context, paths ...string) error
}

// Forget drops cached catalog rows for paths that were removed without
// going through the store, such as by the ad delete cascade. It is a no-op
// for an uncached catalog.
func (s *MediaStore) Forget(ctx context.Context, paths ...string) error {
	if s == nil {
		return nil
	}
	evicter, ok := s.catalog.(catalogEvicter)
	if !ok || len(paths) == 0 {
		return nil
	}
	return evicter.Evict(ctx, paths...)
}

// Fetch returns the catalog row stored at path, bytes included.
func (s *MediaStore) Fetch(ctx context.Context, p string) (types.MediaAsset, error) {
	if !validAssetPath(p) {
		return types.MediaAsset{}, ErrAssetNotFound
	}
	asset, err := s.catalog.GetByPath(ctx, p)
	if err != nil {
		return types.MediaAsset{}, notFoundAs(err, ErrAssetNotFound)
	}
	return asset, nil
}

// StoragePath returns "<kind dir>/<ref>-<slug>.<ext>" for owner.
func StoragePath(owner types.MediaOwner, filename, contentType string) string {
	return fmt.Sprintf("%s/%d-%s.%s", owner.Kind.Dir(), owner.Ref, slugify(owner.Key), extensionFor(filename, contentType))
}

func slugify(s string) string {
	var (
		b     strings.Builder
		runes int
		dash  bool
	)
	for _, r := range strings.ToLower(s) {
		if runes >= maxSlugRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
				runes++
				if runes >= maxSlugRunes {
					break
				}
			}
			dash = false
			b.WriteRune(r)
			runes++
			continue
		}
		dash = true
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

func extensionFor(filename, contentType string) string {
	if ext := cleanExt(path.Ext(strings.ReplaceAll(filename, "\\", "/"))); ext != "" {
		return ext
	}
	if ext, ok := preferredExt[contentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		if ext := cleanExt(exts[0]); ext != "" {
			return ext
		}
	}
	return fallbackExt
}

// cleanExt keeps the letters and digits of ext. An extension longer than
// maxExtRunes is dropped so the content type decides instead.
func cleanExt(ext string) string {
	var b strings.Builder
	runes := 0
	for _, r := range strings.ToLower(strings.TrimPrefix(ext, ".")) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if runes++; runes > maxExtRunes {
				return ""
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeContentType(contentType string, data []byte) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return fallbackMedia
	}
	return mediaType
}

func validAssetPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

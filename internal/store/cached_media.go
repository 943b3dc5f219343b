package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adboard/apiserver/types"
	"github.com/redis/go-redis/v9"
)

const (
	mediaByPathKeyPrefix = "media:path:"
	defaultMediaCacheTTL = 10 * time.Minute
)

// MediaCatalog is the subset of MediaRepository the cache wraps.
type MediaCatalog interface {
	Upsert(ctx context.Context, asset types.MediaAsset) (types.MediaAsset, []string, error)
	GetByPath(ctx context.Context, path string) (types.MediaAsset, error)
	ListPaths(ctx context.Context) ([]string, error)
}

// CachedMediaRepository wraps a MediaCatalog with a Redis read-through
// cache for path lookups. Writes go to the catalog first and then evict
// every affected path.
type CachedMediaRepository struct {
	catalog MediaCatalog
	client  *redis.Client
	ttl     time.Duration
}

// NewCachedMediaRepository creates a cached catalog. A non-positive ttl
// falls back to ten minutes.
func NewCachedMediaRepository(catalog MediaCatalog, client *redis.Client, ttl time.Duration) *CachedMediaRepository {
	if ttl <= 0 {
		ttl = defaultMediaCacheTTL
	}
	return &CachedMediaRepository{
		catalog: catalog,
		client:  client,
		ttl:     ttl,
	}
}

// cachedAsset is the Redis encoding of a catalog row. It differs from
// types.MediaAsset, whose JSON form omits the bytes.
type cachedAsset struct {
	ID          int       `json:"id"`
	OwnerKind   int       `json:"owner_kind"`
	OwnerRef    int       `json:"owner_ref"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCached(a types.MediaAsset) cachedAsset {
	return cachedAsset{
		ID:          a.ID,
		OwnerKind:   int(a.OwnerKind),
		OwnerRef:    a.OwnerRef,
		StoragePath: a.StoragePath,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		Data:        a.Data,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (c cachedAsset) asset() types.MediaAsset {
	return types.MediaAsset{
		ID:          c.ID,
		OwnerKind:   types.OwnerKind(c.OwnerKind),
		OwnerRef:    c.OwnerRef,
		StoragePath: c.StoragePath,
		ContentType: c.ContentType,
		SizeBytes:   c.SizeBytes,
		Data:        c.Data,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// Upsert writes through to the catalog and evicts the written path and the
// paths of any rows it replaced. An eviction failure is returned so callers
// never read a stale payload after an overwrite.
func (r *CachedMediaRepository) Upsert(ctx context.Context, asset types.MediaAsset) (types.MediaAsset, []string, error) {
	stored, replaced, err := r.catalog.Upsert(ctx, asset)
	if err != nil {
		return types.MediaAsset{}, nil, err
	}

	if err := r.Evict(ctx, append([]string{stored.StoragePath}, replaced...)...); err != nil {
		return types.MediaAsset{}, nil, err
	}
	return stored, replaced, nil
}

// GetByPath serves from Redis when possible and fills the cache on a miss.
func (r *CachedMediaRepository) GetByPath(ctx context.Context, path string) (types.MediaAsset, error) {
	key := mediaByPathKeyPrefix + path

	data, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedAsset
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached.asset(), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return types.MediaAsset{}, fmt.Errorf("failed to get cached media: %w", err)
	}

	asset, err := r.catalog.GetByPath(ctx, path)
	if err != nil {
		return types.MediaAsset{}, err
	}

	// A failed fill only costs the next lookup a catalog read.
	if encoded, err := json.Marshal(toCached(asset)); err == nil {
		_ = r.client.Set(ctx, key, encoded, r.ttl).Err()
	}
	return asset, nil
}

func (r *CachedMediaRepository) ListPaths(ctx context.Context) ([]string, error) {
	return r.catalog.ListPaths(ctx)
}

// Evict drops the cached rows of the given paths.
func (r *CachedMediaRepository) Evict(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, mediaByPathKeyPrefix+p)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to evict cached media: %w", err)
	}
	return nil
}

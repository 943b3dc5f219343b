package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/adboard/apiserver/internal/mq"
	"github.com/adboard/apiserver/internal/store"
	"github.com/adboard/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func newTestMediaStore() (*MediaStore, *fakeBlobs, *fakeCatalog, *fakeEvents) {
	blobs := newFakeBlobs()
	catalog := newFakeCatalog()
	events := &fakeEvents{}
	return NewMediaStore(blobs, catalog, events), blobs, catalog, events
}

func TestStoreAndFetchRoundTrip(t *testing.T) {
	media, blobs, _, _ := newTestMediaStore()
	ctx := context.Background()
	owner := types.MediaOwner{Kind: types.OwnerAd, Ref: 7, Key: "Bike"}

	path, err := media.Store(ctx, owner, "photo.jpg", "image/jpeg", jpegBytes)
	require.NoError(t, err)
	assert.Equal(t, "ads/7-bike.jpg", path)

	asset, err := media.Fetch(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, asset.Data)
	assert.Equal(t, "image/jpeg", asset.ContentType)
	assert.Equal(t, int64(len(jpegBytes)), asset.SizeBytes)
	assert.Equal(t, types.OwnerAd, asset.OwnerKind)
	assert.Equal(t, 7, asset.OwnerRef)

	blob, ok := blobs.get(path)
	require.True(t, ok)
	assert.Equal(t, jpegBytes, blob.data)
}

func TestStoreIsIdempotentPerOwner(t *testing.T) {
	media, _, catalog, _ := newTestMediaStore()
	ctx := context.Background()
	owner := types.MediaOwner{Kind: types.OwnerAd, Ref: 7, Key: "Bike"}

	first, err := media.Store(ctx, owner, "a.jpg", "image/jpeg", []byte("one"))
	require.NoError(t, err)
	second, err := media.Store(ctx, owner, "b.jpg", "image/jpeg", []byte("two"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, catalog.count())

	asset, err := media.Fetch(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), asset.Data)
}

func TestStoreSameTitleDifferentAds(t *testing.T) {
	media, _, catalog, _ := newTestMediaStore()
	ctx := context.Background()

	a, err := media.Store(ctx, types.MediaOwner{Kind: types.OwnerAd, Ref: 1, Key: "Bike"}, "x.png", "", []byte("a"))
	require.NoError(t, err)
	b, err := media.Store(ctx, types.MediaOwner{Kind: types.OwnerAd, Ref: 2, Key: "Bike"}, "x.png", "", []byte("b"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, catalog.count())
}

func TestStoreReplacesOwnerPreviousPath(t *testing.T) {
	media, _, catalog, events := newTestMediaStore()
	ctx := context.Background()

	old, err := media.Store(ctx, types.MediaOwner{Kind: types.OwnerAd, Ref: 3, Key: "Old title"}, "p.png", "image/png", []byte("1"))
	require.NoError(t, err)
	fresh, err := media.Store(ctx, types.MediaOwner{Kind: types.OwnerAd, Ref: 3, Key: "New title"}, "p.png", "image/png", []byte("2"))
	require.NoError(t, err)

	assert.Equal(t, "ads/3-new-title.png", fresh)
	assert.Equal(t, 1, catalog.count())
	_, err = media.Fetch(ctx, old)
	assert.ErrorIs(t, err, ErrAssetNotFound)

	published := events.published()
	require.Len(t, published, 2)
	last, ok := published[1].payload.(mq.MediaStored)
	require.True(t, ok)
	assert.Equal(t, mq.ChannelMediaStored, published[1].channel)
	assert.Equal(t, []string{old}, last.Replaced)
}

func TestStoreStorageFailureWritesNoRow(t *testing.T) {
	media, blobs, catalog, events := newTestMediaStore()
	blobs.PutFn = func(context.Context, string, io.Reader, int64, string) error {
		return errors.New("disk full")
	}

	path, err := media.Store(context.Background(), types.MediaOwner{Kind: types.OwnerUser, Ref: 1, Key: "a@b.c"}, "me.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, ErrStorageIO)
	assert.Empty(t, path)
	assert.Zero(t, catalog.count())
	assert.Empty(t, events.published())
}

func TestStoreCatalogFailure(t *testing.T) {
	media, blobs, catalog, _ := newTestMediaStore()
	boom := errors.New("tx aborted")
	catalog.UpsertFn = func(context.Context, types.MediaAsset) (types.MediaAsset, []string, error) {
		return types.MediaAsset{}, nil, boom
	}

	path, err := media.Store(context.Background(), types.MediaOwner{Kind: types.OwnerAd, Ref: 1, Key: "Bike"}, "b.jpg", "image/jpeg", []byte("x"))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, path)

	// The blob stays behind for the sweep.
	_, ok := blobs.get("ads/1-bike.jpg")
	assert.True(t, ok)
}

func TestStorePublishFailureKeepsRow(t *testing.T) {
	media, _, catalog, events := newTestMediaStore()
	events.err = errors.New("broker unavailable")

	path, err := media.Store(context.Background(), types.MediaOwner{Kind: types.OwnerAd, Ref: 1, Key: "Bike"}, "b.jpg", "", jpegBytes)
	assert.ErrorIs(t, err, events.err)
	assert.Equal(t, "ads/1-bike.jpg", path)
	assert.Equal(t, 1, catalog.count())
}

func TestStoreWithoutPublisher(t *testing.T) {
	media := NewMediaStore(newFakeBlobs(), newFakeCatalog(), nil)

	path, err := media.Store(context.Background(), types.MediaOwner{Kind: types.OwnerUser, Ref: 4, Key: "Ann.Lee@example.com"}, "", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "users/4-ann-lee-example-com.png", path)
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	media, _, _, _ := newTestMediaStore()
	ctx := context.Background()

	_, err := media.Store(ctx, types.MediaOwner{Kind: types.OwnerAd, Ref: 1, Key: "Bike"}, "b.jpg", "image/jpeg", nil)
	assert.ErrorIs(t, err, ErrInvalidMedia)

	_, err = media.Store(ctx, types.MediaOwner{Ref: 1, Key: "Bike"}, "b.jpg", "image/jpeg", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidMedia)
}

func TestStoreDetectsContentType(t *testing.T) {
	media, _, _, _ := newTestMediaStore()
	ctx := context.Background()

	path, err := media.Store(ctx, types.MediaOwner{Kind: types.OwnerAd, Ref: 9, Key: "Camera"}, "", "", jpegBytes)
	require.NoError(t, err)
	assert.Equal(t, "ads/9-camera.jpg", path)

	asset, err := media.Fetch(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", asset.ContentType)
}

func TestFetchMissingAndInvalidPaths(t *testing.T) {
	media, _, _, _ := newTestMediaStore()
	ctx := context.Background()

	for _, p := range []string{"ads/1-nothing.jpg", "", "/etc/passwd", "ads/../users/1-x.png", "ads//1.png", `ads\1.png`} {
		_, err := media.Fetch(ctx, p)
		assert.ErrorIs(t, err, ErrAssetNotFound, p)
		assert.ErrorIs(t, err, store.ErrNotFound, p)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Bike":               "bike",
		"  Red   Bike!! ":    "red-bike",
		"Велосипед Б/У":      "велосипед-б-у",
		"!!!":                "unnamed",
		"":                   "unnamed",
		"iPhone 15 Pro (2g)": "iphone-15-pro-2g",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), in)
	}

	long := slugify(strings.Repeat("ab ", 40))
	assert.LessOrEqual(t, len([]rune(long)), maxSlugRunes)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "png", extensionFor("Photo.PNG", "image/jpeg"))
	assert.Equal(t, "jpg", extensionFor("", "image/jpeg"))
	assert.Equal(t, "jpg", extensionFor("noext", "image/jpeg"))
	assert.Equal(t, "webp", extensionFor("", "image/webp"))
	assert.Equal(t, "bin", extensionFor("", "application/x-unknown-thing"))
	assert.Equal(t, "gif", extensionFor(`C:\Users\me\cat.gif`, ""))
	assert.Equal(t, "jpg", extensionFor("x."+strings.Repeat("a", 300), "image/jpeg"))
	assert.Equal(t, "bin", extensionFor("x."+strings.Repeat("a", 17), ""))
	assert.Equal(t, "abcdefghijklmnop", extensionFor("x.abcdefghijklmnop", "image/png"))
}

func TestStoragePathBoundsLongExtensions(t *testing.T) {
	owner := types.MediaOwner{Kind: types.OwnerAd, Ref: 4, Key: "Bike"}
	assert.Equal(t, "ads/4-bike.png", StoragePath(owner, "bike."+strings.Repeat("z", 300), "image/png"))
}

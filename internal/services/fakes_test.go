package services

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adboard/apiserver/internal/storage"
	"github.com/adboard/apiserver/internal/store"
	"github.com/adboard/apiserver/types"
)

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[int]types.User
	nextID int

	GetByEmailFn func(ctx context.Context, email string) (types.User, error)
}

func newFakeUsers(users ...types.User) *fakeUsers {
	f := &fakeUsers{byID: map[int]types.User{}}
	for _, u := range users {
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	if f.GetByEmailFn != nil {
		return f.GetByEmailFn(ctx, email)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) SetImagePath(_ context.Context, id int, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ImagePath = path
	f.byID[id] = u
	return nil
}

type fakeAds struct {
	mu     sync.Mutex
	byID   map[int]types.Ad
	nextID int

	// media is cleared of the ad's rows on Delete when set.
	media *fakeCatalog
	// comments is cleared of the ad's rows on Delete when set.
	comments *fakeComments

	GetFn func(ctx context.Context, id int) (types.Ad, error)
}

func newFakeAds(ads ...types.Ad) *fakeAds {
	f := &fakeAds{byID: map[int]types.Ad{}}
	for _, a := range ads {
		if a.ID > f.nextID {
			f.nextID = a.ID
		}
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAds) List(context.Context) ([]types.Ad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ads := make([]types.Ad, 0, len(f.byID))
	for _, a := range f.byID {
		ads = append(ads, a)
	}
	sort.Slice(ads, func(i, j int) bool { return ads[i].ID < ads[j].ID })
	return ads, nil
}

func (f *fakeAds) ListByAuthor(ctx context.Context, authorID int) ([]types.Ad, error) {
	all, _ := f.List(ctx)
	ads := []types.Ad{}
	for _, a := range all {
		if a.AuthorID == authorID {
			ads = append(ads, a)
		}
	}
	return ads, nil
}

func (f *fakeAds) Get(ctx context.Context, id int) (types.Ad, error) {
	if f.GetFn != nil {
		return f.GetFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return types.Ad{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeAds) Create(_ context.Context, ad types.Ad) (types.Ad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ad.ID = f.nextID
	ad.CreatedAt = time.Now()
	ad.UpdatedAt = ad.CreatedAt
	f.byID[ad.ID] = ad
	return ad, nil
}

func (f *fakeAds) Update(_ context.Context, ad types.Ad) (types.Ad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[ad.ID]
	if !ok {
		return types.Ad{}, store.ErrNotFound
	}
	stored.Title = ad.Title
	stored.Price = ad.Price
	stored.Description = ad.Description
	f.byID[ad.ID] = stored
	return stored, nil
}

func (f *fakeAds) SetImagePath(_ context.Context, id int, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	a.ImagePath = path
	f.byID[id] = a
	return nil
}

func (f *fakeAds) Delete(_ context.Context, id int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return nil, store.ErrNotFound
	}
	delete(f.byID, id)
	var paths []string
	if f.media != nil {
		paths = f.media.removeOwner(types.OwnerAd, id)
	}
	if f.comments != nil {
		f.comments.removeAd(id)
	}
	return paths, nil
}

type fakeComments struct {
	mu     sync.Mutex
	rows   []types.Comment
	nextID int

	ListByAdFn func(ctx context.Context, adID int) ([]types.Comment, error)
}

func newFakeComments(comments ...types.Comment) *fakeComments {
	f := &fakeComments{}
	for _, c := range comments {
		if c.ID > f.nextID {
			f.nextID = c.ID
		}
		f.rows = append(f.rows, c)
	}
	return f
}

func (f *fakeComments) ListByAd(ctx context.Context, adID int) ([]types.Comment, error) {
	if f.ListByAdFn != nil {
		return f.ListByAdFn(ctx, adID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Comment{}
	for _, c := range f.rows {
		if c.AdID == adID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComments) Create(_ context.Context, c types.Comment) (types.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	f.rows = append(f.rows, c)
	return c, nil
}

func (f *fakeComments) UpdateText(_ context.Context, adID, id int, text string) (types.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.rows {
		if c.AdID == adID && c.ID == id {
			f.rows[i].Text = text
			return f.rows[i], nil
		}
	}
	return types.Comment{}, store.ErrNotFound
}

func (f *fakeComments) Delete(_ context.Context, adID, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.rows {
		if c.AdID == adID && c.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeComments) removeAd(adID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, c := range f.rows {
		if c.AdID != adID {
			kept = append(kept, c)
		}
	}
	f.rows = kept
}

type fakeCatalog struct {
	mu     sync.Mutex
	rows   map[string]types.MediaAsset
	nextID int

	UpsertFn func(ctx context.Context, asset types.MediaAsset) (types.MediaAsset, []string, error)
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{rows: map[string]types.MediaAsset{}}
}

func (f *fakeCatalog) Upsert(ctx context.Context, asset types.MediaAsset) (types.MediaAsset, []string, error) {
	if f.UpsertFn != nil {
		return f.UpsertFn(ctx, asset)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	if existing, ok := f.rows[asset.StoragePath]; ok {
		asset.ID = existing.ID
		asset.CreatedAt = existing.CreatedAt
	} else {
		f.nextID++
		asset.ID = f.nextID
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now
	asset.Data = append([]byte(nil), asset.Data...)
	f.rows[asset.StoragePath] = asset

	var replaced []string
	for p, row := range f.rows {
		if p != asset.StoragePath && row.OwnerKind == asset.OwnerKind && row.OwnerRef == asset.OwnerRef {
			replaced = append(replaced, p)
			delete(f.rows, p)
		}
	}
	sort.Strings(replaced)
	return asset, replaced, nil
}

func (f *fakeCatalog) GetByPath(_ context.Context, path string) (types.MediaAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[path]
	if !ok {
		return types.MediaAsset{}, store.ErrNotFound
	}
	return row, nil
}

func (f *fakeCatalog) ListPaths(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.rows))
	for p := range f.rows {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (f *fakeCatalog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeCatalog) removeOwner(kind types.OwnerKind, ref int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []string
	for p, row := range f.rows {
		if row.OwnerKind == kind && row.OwnerRef == ref {
			removed = append(removed, p)
			delete(f.rows, p)
		}
	}
	sort.Strings(removed)
	return removed
}

type fakeBlob struct {
	data        []byte
	contentType string
	modified    time.Time
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string]fakeBlob
	now     func() time.Time

	PutFn func(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string]fakeBlob{}, now: time.Now}
}

func (f *fakeBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.PutFn != nil {
		return f.PutFn(ctx, key, r, size, contentType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = fakeBlob{data: data, contentType: contentType, modified: f.now()}
	return nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ObjectInfo
	for k, b := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(b.data)), LastModified: b.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeBlobs) get(key string) (fakeBlob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return b, ok
}

type publishedEvent struct {
	channel string
	payload any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakeEvents) PublishEvent(_ context.Context, channel string, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, publishedEvent{channel: channel, payload: payload})
	return "evt", nil
}

func (f *fakeEvents) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.events...)
}

func asPrincipal(username string, roles ...types.Role) types.Principal {
	return types.Principal{Username: username, Roles: types.NewRoleSet(roles...)}
}

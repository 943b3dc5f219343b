// Package storetest provides an in-memory stand-in for the Postgres
// repositories, for tests that exercise services and routes without a
// database. It mirrors the repositories' not-found, conflict and cascade
// behavior.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adboard/apiserver/internal/store"
	"github.com/adboard/apiserver/types"
)

// Memory holds every table behind one lock.
type Memory struct {
	mu       sync.Mutex
	users    map[int]types.User
	ads      map[int]types.Ad
	comments map[int]types.Comment
	media    map[string]types.MediaAsset
	seq      int
}

func New() *Memory {
	return &Memory{
		users:    map[int]types.User{},
		ads:      map[int]types.Ad{},
		comments: map[int]types.Comment{},
		media:    map[string]types.MediaAsset{},
	}
}

func (m *Memory) nextID() int {
	m.seq++
	return m.seq
}

func (m *Memory) Users() *Users       { return &Users{m} }
func (m *Memory) Ads() *Ads           { return &Ads{m} }
func (m *Memory) Comments() *Comments { return &Comments{m} }
func (m *Memory) Media() *Media       { return &Media{m} }

type Users struct{ m *Memory }

func (u *Users) GetByID(_ context.Context, id int) (types.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	user, ok := u.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	for _, user := range u.m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (u *Users) Create(_ context.Context, user types.User) (types.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	for _, existing := range u.m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	if user.Role == 0 {
		user.Role = types.RoleUser
	}
	user.ID = u.m.nextID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	u.m.users[user.ID] = user
	return user, nil
}

func (u *Users) Update(_ context.Context, user types.User) (types.User, error) {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	stored, ok := u.m.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Phone = user.Phone
	stored.Role = user.Role
	stored.PasswordHash = user.PasswordHash
	stored.UpdatedAt = time.Now()
	u.m.users[user.ID] = stored
	return stored, nil
}

func (u *Users) SetImagePath(_ context.Context, id int, path string) error {
	u.m.mu.Lock()
	defer u.m.mu.Unlock()
	user, ok := u.m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ImagePath = path
	u.m.users[id] = user
	return nil
}

type Ads struct{ m *Memory }

func (a *Ads) List(context.Context) ([]types.Ad, error) {
	return a.filter(func(types.Ad) bool { return true }), nil
}

func (a *Ads) ListByAuthor(_ context.Context, authorID int) ([]types.Ad, error) {
	return a.filter(func(ad types.Ad) bool { return ad.AuthorID == authorID }), nil
}

func (a *Ads) filter(keep func(types.Ad) bool) []types.Ad {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	ads := []types.Ad{}
	for _, ad := range a.m.ads {
		if keep(ad) {
			ads = append(ads, ad)
		}
	}
	sort.Slice(ads, func(i, j int) bool { return ads[i].ID < ads[j].ID })
	return ads
}

func (a *Ads) Get(_ context.Context, id int) (types.Ad, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	ad, ok := a.m.ads[id]
	if !ok {
		return types.Ad{}, store.ErrNotFound
	}
	return ad, nil
}

func (a *Ads) Create(_ context.Context, ad types.Ad) (types.Ad, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if _, ok := a.m.users[ad.AuthorID]; !ok {
		return types.Ad{}, store.ErrNotFound
	}
	ad.ID = a.m.nextID()
	ad.CreatedAt = time.Now()
	ad.UpdatedAt = ad.CreatedAt
	a.m.ads[ad.ID] = ad
	return ad, nil
}

func (a *Ads) Update(_ context.Context, ad types.Ad) (types.Ad, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	stored, ok := a.m.ads[ad.ID]
	if !ok {
		return types.Ad{}, store.ErrNotFound
	}
	stored.Title = ad.Title
	stored.Price = ad.Price
	stored.Description = ad.Description
	stored.UpdatedAt = time.Now()
	a.m.ads[ad.ID] = stored
	return stored, nil
}

func (a *Ads) SetImagePath(_ context.Context, id int, path string) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	ad, ok := a.m.ads[id]
	if !ok {
		return store.ErrNotFound
	}
	ad.ImagePath = path
	a.m.ads[id] = ad
	return nil
}

// Delete removes the ad, its comments and its media rows.
func (a *Ads) Delete(_ context.Context, id int) ([]string, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if _, ok := a.m.ads[id]; !ok {
		return nil, store.ErrNotFound
	}
	for cid, c := range a.m.comments {
		if c.AdID == id {
			delete(a.m.comments, cid)
		}
	}
	var paths []string
	for p, asset := range a.m.media {
		if asset.OwnerKind == types.OwnerAd && asset.OwnerRef == id {
			paths = append(paths, p)
			delete(a.m.media, p)
		}
	}
	delete(a.m.ads, id)
	sort.Strings(paths)
	return paths, nil
}

type Comments struct{ m *Memory }

func (c *Comments) ListByAd(_ context.Context, adID int) ([]types.Comment, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	out := []types.Comment{}
	for _, comment := range c.m.comments {
		if comment.AdID == adID {
			out = append(out, comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Comments) Create(_ context.Context, comment types.Comment) (types.Comment, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if _, ok := c.m.ads[comment.AdID]; !ok {
		return types.Comment{}, store.ErrNotFound
	}
	comment.ID = c.m.nextID()
	comment.CreatedAt = time.Now()
	c.m.comments[comment.ID] = comment
	return comment, nil
}

func (c *Comments) UpdateText(_ context.Context, adID, id int, text string) (types.Comment, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	comment, ok := c.m.comments[id]
	if !ok || comment.AdID != adID {
		return types.Comment{}, store.ErrNotFound
	}
	comment.Text = text
	c.m.comments[id] = comment
	return comment, nil
}

func (c *Comments) Delete(_ context.Context, adID, id int) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	comment, ok := c.m.comments[id]
	if !ok || comment.AdID != adID {
		return store.ErrNotFound
	}
	delete(c.m.comments, id)
	return nil
}

type Media struct{ m *Memory }

// Upsert stores asset at its path and drops the owner's rows at other
// paths, returning them.
func (md *Media) Upsert(_ context.Context, asset types.MediaAsset) (types.MediaAsset, []string, error) {
	md.m.mu.Lock()
	defer md.m.mu.Unlock()
	now := time.Now()
	asset.Data = append([]byte(nil), asset.Data...)
	asset.SizeBytes = int64(len(asset.Data))
	asset.UpdatedAt = now
	if existing, ok := md.m.media[asset.StoragePath]; ok {
		asset.ID = existing.ID
		asset.CreatedAt = existing.CreatedAt
	} else {
		asset.ID = md.m.nextID()
		asset.CreatedAt = now
	}
	md.m.media[asset.StoragePath] = asset

	var replaced []string
	for p, row := range md.m.media {
		if p != asset.StoragePath && row.OwnerKind == asset.OwnerKind && row.OwnerRef == asset.OwnerRef {
			replaced = append(replaced, p)
			delete(md.m.media, p)
		}
	}
	sort.Strings(replaced)
	return asset, replaced, nil
}

func (md *Media) GetByPath(_ context.Context, path string) (types.MediaAsset, error) {
	md.m.mu.Lock()
	defer md.m.mu.Unlock()
	asset, ok := md.m.media[path]
	if !ok {
		return types.MediaAsset{}, store.ErrNotFound
	}
	return asset, nil
}

func (md *Media) ListPaths(context.Context) ([]string, error) {
	md.m.mu.Lock()
	defer md.m.mu.Unlock()
	paths := make([]string, 0, len(md.m.media))
	for p := range md.m.media {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

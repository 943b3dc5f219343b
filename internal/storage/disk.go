package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const tempFilePrefix = ".tmp-"

// DiskClient stores objects as files below a root directory.
type DiskClient struct {
	root string
}

// NewDiskClient constructs a filesystem backend rooted at dir.
func NewDiskClient(dir string) (*DiskClient, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("media directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &DiskClient{root: abs}, nil
}

// EnsureBucket creates the root directory if it does not exist.
func (d *DiskClient) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(d.root, 0o755)
}

// Put writes the object to a temporary file in the target directory and
// renames it over key, so concurrent readers see either the old or the new
// content and the last writer wins.
func (d *DiskClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	dst, err := d.resolve(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := filepath.Join(dir, tempFilePrefix+uuid.NewString())
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

// Get opens the file stored at key.
func (d *DiskClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := d.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the file at key. Removing a missing file is not an error.
func (d *DiskClient) Delete(ctx context.Context, key string) error {
	p, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the tree below prefix and describes every file with its
// slash-separated key. Temporary files of in-flight writes are skipped.
func (d *DiskClient) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	start := d.root
	if prefix != "" {
		p, err := d.resolve(prefix)
		if err != nil {
			return nil, err
		}
		start = p
	}

	objects := make([]ObjectInfo, 0)
	err := filepath.WalkDir(start, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == start {
				return fs.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempFilePrefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// Bucket returns the root directory.
func (d *DiskClient) Bucket() string {
	return d.root
}

func (d *DiskClient) resolve(key string) (string, error) {
	clean := path.Clean(strings.TrimSpace(key))
	if clean == "." || clean == "" || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

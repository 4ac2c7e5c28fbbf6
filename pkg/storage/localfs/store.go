// Package localfs implements a cave store on top of a local filesystem tree.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dragonhoard/dragon/pkg/storage"
	"github.com/dragonhoard/dragon/pkg/storage/status"

	"github.com/spf13/afero"
)

// New creates a local file system backed cave store.
//
// The afero abstraction keeps tests on an in-memory filesystem while real
// caves mount the OS filesystem at their configured root.
func New(fs afero.Fs, descr string) storage.Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &localFS{fs: fs, descr: descr}
}

// NewAtRoot creates a cave store rooted at an OS directory
func NewAtRoot(root string) storage.Store {
	return New(afero.NewBasePathFs(afero.NewOsFs(), root), root)
}

type localFS struct {
	fs    afero.Fs
	descr string
}

func (l *localFS) String() string {
	return "localfs@" + l.descr
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(toOSPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (l *localFS) Stat(ctx context.Context, key string) (storage.FileInfo, error) {
	fi, err := l.fs.Stat(toOSPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return storage.FileInfo{}, status.ErrNotExists
		}
		return storage.FileInfo{}, status.ErrStorageAPI.Wrap(err)
	}
	if fi.IsDir() {
		return storage.FileInfo{}, status.ErrNotExists
	}
	return storage.FileInfo{Size: fi.Size(), Mtime: fi.ModTime()}, nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return l.GetAt(ctx, key, 0)
}

func (l *localFS) GetAt(ctx context.Context, key string, offset int64) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	if !has {
		return nil, status.ErrNotExists
	}
	t, err := l.fs.Open(toOSPath(key))
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	if offset > 0 {
		if _, err = t.Seek(offset, io.SeekStart); err != nil {
			_ = t.Close()
			return nil, status.ErrInvalidOffset.Wrap(err)
		}
	}
	return t, nil
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	pth := toOSPath(key)
	if dir := filepath.Dir(pth); dir != "" && dir != "." {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC | os.O_SYNC
	if exclusive {
		flag = os.O_CREATE | os.O_WRONLY | os.O_EXCL | os.O_SYNC
	}
	target, err := l.fs.OpenFile(pth, flag, 0600)
	if err != nil {
		if os.IsExist(err) {
			return status.ErrExists
		}
		return status.ErrStorageAPI.Wrap(err)
	}
	if _, err = storage.PipeIO(target, source); err != nil {
		_ = target.Close()
		return status.ErrStorageAPI.Wrap(err)
	}
	return target.Close()
}

func (l *localFS) OpenAppend(ctx context.Context, key string) (io.WriteCloser, error) {
	pth := toOSPath(key)
	if dir := filepath.Dir(pth); dir != "" && dir != "." {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return nil, status.ErrStorageAPI.Wrap(err)
		}
	}
	target, err := l.fs.OpenFile(pth, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0600)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return target, nil
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := l.fs.Remove(toOSPath(key)); err != nil {
		if os.IsNotExist(err) {
			return status.ErrNotExists
		}
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (l *localFS) Rename(ctx context.Context, oldKey, newKey string) error {
	pth := toOSPath(newKey)
	if dir := filepath.Dir(pth); dir != "" && dir != "." {
		if err := l.fs.MkdirAll(dir, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	if err := l.fs.Rename(toOSPath(oldKey), pth); err != nil {
		// not every backing filesystem replaces an existing destination
		if rmErr := l.fs.Remove(pth); rmErr != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
		if err = l.fs.Rename(toOSPath(oldKey), pth); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	return nil
}

func (l *localFS) Walk(ctx context.Context, prefix string, fn func(key string) error) error {
	root := "."
	if prefix != "" {
		root = toOSPath(prefix)
	}
	err := afero.Walk(l.fs, root, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && pth == root {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return fn(toKey(pth))
	})
	if err != nil && err != filepath.SkipDir {
		return err
	}
	return nil
}

// toOSPath maps a store key to a path understood by the backing filesystem
func toOSPath(key string) string {
	return filepath.FromSlash(strings.TrimPrefix(key, "/"))
}

// toKey maps a filesystem path back to a store key
func toKey(pth string) string {
	return strings.TrimPrefix(filepath.ToSlash(pth), "./")
}

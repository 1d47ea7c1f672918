package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/accord/pkg/lifecycle"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

type filesystem struct {
	root   string
	logger *slog.Logger
}

// NewFilesystem creates a storage system rooted at the given directory.
// Blobs are written to a temp file in the destination directory and hard-linked
// into place, so a key is either fully written or absent, and never replaced.
func NewFilesystem(root string, logger *slog.Logger) (System, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("filesystem root required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	return &filesystem{
		root:   abs,
		logger: logger.With("system", "storage", "backend", BackendFilesystem),
	}, nil
}

func (f *filesystem) Start(lc *lifecycle.Coordinator) error {
	f.logger.Info("starting storage system")

	lc.OnStartup("storage", func() error {
		if err := os.MkdirAll(f.root, dirPerm); err != nil {
			f.logger.Error("storage root initialization failed", "error", err)
			return fmt.Errorf("create root %s: %w", f.root, err)
		}
		f.logger.Info("storage root ready", "root", f.root)
		return nil
	})

	return nil
}

func (f *filesystem) Upload(
	ctx context.Context,
	key string,
	reader io.Reader,
	contentType string,
	metadata map[string]string,
) (string, error) {
	dest, err := f.path(key)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: reader}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}
	_ = os.Chmod(tmpPath, filePerm)

	if err := os.Link(tmpPath, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("upload blob %s: %w", key, ErrExists)
		}
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}

	syncDir(dir)
	return "file://" + filepath.ToSlash(dest), nil
}

func (f *filesystem) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}
	return file, nil
}

func (f *filesystem) Delete(ctx context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

func (f *filesystem) Exists(ctx context.Context, key string) (bool, error) {
	p, err := f.path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("check blob existence %s: %w", key, err)
	}
	return !info.IsDir(), nil
}

func (f *filesystem) List(ctx context.Context, prefix string) ([]string, error) {
	start := f.root
	if dir := prefixDir(prefix); dir != "" {
		start = filepath.Join(f.root, filepath.FromSlash(dir))
	}

	var keys []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs %s: %w", prefix, err)
	}

	slices.Sort(keys)
	return keys, nil
}

func (f *filesystem) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if filepath.IsAbs(key) || filepath.VolumeName(key) != "" {
		return "", ErrInvalidKey
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}

// prefixDir returns the directory portion of a key prefix ("a/b/c" -> "a/b").
func prefixDir(prefix string) string {
	i := strings.LastIndex(prefix, "/")
	if i < 0 {
		return ""
	}
	return prefix[:i]
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

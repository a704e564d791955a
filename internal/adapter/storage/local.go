package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/semmidev/bucketeer/internal/domain"
)

const (
	regionMarker  = ".bucket-region"
	defaultRegion = "us-east-1"
)

// LocalStorage keeps each bucket as a directory under basePath. Object keys
// map to slash-separated relative paths inside the bucket directory.
type LocalStorage struct {
	basePath string
}

var _ domain.BucketStore = (*LocalStorage)(nil)

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) CreateBucket(ctx context.Context, name, region string) error {
	dir, err := l.bucketDir("create bucket", name)
	if err != nil {
		return err
	}
	if region == "" {
		region = defaultRegion
	}

	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &domain.Error{Op: "create bucket", Bucket: name, Kind: domain.KindAlreadyOwned, Err: err}
		}
		return localErr("create bucket", name, "", err)
	}

	if err := os.WriteFile(filepath.Join(dir, regionMarker), []byte(region), 0644); err != nil {
		os.RemoveAll(dir)
		return localErr("create bucket", name, "", err)
	}
	return nil
}

func (l *LocalStorage) BucketRegion(ctx context.Context, name string) (string, error) {
	dir, err := l.bucketDir("head bucket", name)
	if err != nil {
		return "", err
	}

	region, err := os.ReadFile(filepath.Join(dir, regionMarker))
	if err != nil {
		return "", localErr("head bucket", name, "", err)
	}
	return strings.TrimSpace(string(region)), nil
}

func (l *LocalStorage) ListBuckets(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, localErr("list buckets", "", "", err)
	}

	var buckets []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.basePath, entry.Name(), regionMarker)); err == nil {
			buckets = append(buckets, entry.Name())
		}
	}
	return buckets, nil
}

func (l *LocalStorage) UploadFile(ctx context.Context, bucket, key, localPath string) error {
	if _, err := l.BucketRegion(ctx, bucket); err != nil {
		return err
	}
	dest, err := l.objectPath("upload", bucket, key)
	if err != nil {
		return err
	}

	source, err := os.Open(localPath)
	if err != nil {
		return &domain.Error{Op: "upload", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return localErr("upload", bucket, key, err)
	}
	if err := copyInto(dest, source); err != nil {
		return localErr("upload", bucket, key, err)
	}
	return nil
}

func (l *LocalStorage) DownloadFile(ctx context.Context, bucket, key, localPath string) error {
	src, err := l.objectPath("download", bucket, key)
	if err != nil {
		return err
	}

	source, err := os.Open(src)
	if err != nil {
		if _, headErr := l.BucketRegion(ctx, bucket); headErr != nil {
			return headErr
		}
		return localErr("download", bucket, key, err)
	}
	defer source.Close()

	if err := copyInto(localPath, source); err != nil {
		return &domain.Error{Op: "download", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
	}
	return nil
}

func (l *LocalStorage) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	dir, err := l.bucketDir("list objects", bucket)
	if err != nil {
		return nil, err
	}
	if _, err := l.BucketRegion(ctx, bucket); err != nil {
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == regionMarker {
			return nil
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, localErr("list objects", bucket, "", err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (l *LocalStorage) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	for _, key := range keys {
		path, err := l.objectPath("delete object", bucket, key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return localErr("delete object", bucket, key, err)
		}
	}
	return nil
}

func (l *LocalStorage) DeleteBucket(ctx context.Context, name string) error {
	dir, err := l.bucketDir("delete bucket", name)
	if err != nil {
		return err
	}

	keys, err := l.ListObjects(ctx, name)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return &domain.Error{
			Op: "delete bucket", Bucket: name, Kind: domain.KindNotEmpty,
			Err: fmt.Errorf("%d object(s) remain", len(keys)),
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return localErr("delete bucket", name, "", err)
	}
	return nil
}

// GetPath returns where an object of bucket would live on disk.
func (l *LocalStorage) GetPath(bucket, key string) string {
	return filepath.Join(l.basePath, bucket, filepath.FromSlash(key))
}

func (l *LocalStorage) bucketDir(op, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", &domain.Error{Op: op, Bucket: name, Kind: domain.KindInvalidArgument, Err: fmt.Errorf("invalid bucket name")}
	}
	return filepath.Join(l.basePath, name), nil
}

func (l *LocalStorage) objectPath(op, bucket, key string) (string, error) {
	dir, err := l.bucketDir(op, bucket)
	if err != nil {
		return "", err
	}
	rel := filepath.FromSlash(strings.TrimLeft(key, "/"))
	if !filepath.IsLocal(rel) || rel == regionMarker {
		return "", &domain.Error{Op: op, Bucket: bucket, Key: key, Kind: domain.KindInvalidArgument, Err: fmt.Errorf("invalid object key")}
	}
	return filepath.Join(dir, rel), nil
}

// copyInto streams r into a temp file beside dest and renames it over dest.
func copyInto(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.ReadFrom(r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func localErr(op, bucket, key string, err error) error {
	kind := domain.KindUnknown
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = domain.KindNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = domain.KindPermissionDenied
	}
	return &domain.Error{Op: op, Bucket: bucket, Key: key, Kind: kind, Err: err}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appconfig "github.com/semmidev/bucketeer/internal/config"
	"github.com/semmidev/bucketeer/internal/domain"
)

const minioPartSuffix = ".part.minio"

// MinioAPI is the subset of *minio.Client the adapter calls.
type MinioAPI interface {
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	GetBucketLocation(ctx context.Context, bucketName string) (string, error)
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
	RemoveBucket(ctx context.Context, bucketName string) error
}

type MinioStorage struct {
	client MinioAPI
	region string
}

var _ domain.BucketStore = (*MinioStorage)(nil)

func NewMinio(cfg *appconfig.StorageConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	return NewMinioWithClient(client, cfg.Region), nil
}

func NewMinioWithClient(client MinioAPI, region string) *MinioStorage {
	return &MinioStorage{client: client, region: region}
}

func (m *MinioStorage) CreateBucket(ctx context.Context, name, region string) error {
	if err := m.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: region}); err != nil {
		return minioErr("create bucket", name, "", err)
	}
	return nil
}

func (m *MinioStorage) BucketRegion(ctx context.Context, name string) (string, error) {
	exists, err := m.client.BucketExists(ctx, name)
	if err != nil {
		return "", minioErr("head bucket", name, "", err)
	}
	if !exists {
		return "", &domain.Error{Op: "head bucket", Bucket: name, Kind: domain.KindNotFound}
	}

	region, err := m.client.GetBucketLocation(ctx, name)
	if err != nil {
		return "", minioErr("head bucket", name, "", err)
	}
	if region == "" {
		region = m.region
	}
	return region, nil
}

func (m *MinioStorage) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := m.client.ListBuckets(ctx)
	if err != nil {
		return nil, minioErr("list buckets", "", "", err)
	}

	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

func (m *MinioStorage) UploadFile(ctx context.Context, bucket, key, localPath string) error {
	if _, err := m.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{}); err != nil {
		return minioErr("upload", bucket, key, err)
	}
	return nil
}

// DownloadFile lets FGetObject fill a temp file beside localPath and renames
// it on success. FGetObject keeps a resumable "<path><etag>.part.minio" after
// a failed transfer; those are removed along with the temp file.
func (m *MinioStorage) DownloadFile(ctx context.Context, bucket, key, localPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		return &domain.Error{Op: "download", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
	}
	tmp.Close()
	defer removePartial(tmp.Name())

	if err := m.client.FGetObject(ctx, bucket, key, tmp.Name(), minio.GetObjectOptions{}); err != nil {
		return minioErr("download", bucket, key, err)
	}

	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return &domain.Error{Op: "download", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
	}
	return nil
}

func (m *MinioStorage) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, minioErr("list objects", bucket, "", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *MinioStorage) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	objects := make(chan minio.ObjectInfo)
	go func() {
		defer close(objects)
		for _, key := range keys {
			select {
			case objects <- minio.ObjectInfo{Key: key}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var failed []minio.RemoveObjectError
	for rerr := range m.client.RemoveObjects(ctx, bucket, objects, minio.RemoveObjectsOptions{}) {
		failed = append(failed, rerr)
	}
	if len(failed) > 0 {
		first := failed[0]
		return minioErr("delete objects", bucket, first.ObjectName,
			fmt.Errorf("%d of %d keys failed: %w", len(failed), len(keys), first.Err))
	}
	return ctx.Err()
}

func (m *MinioStorage) DeleteBucket(ctx context.Context, name string) error {
	if err := m.client.RemoveBucket(ctx, name); err != nil {
		return minioErr("delete bucket", name, "", err)
	}
	return nil
}

func minioErr(op, bucket, key string, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}

	kind := domain.KindUnknown
	var resp minio.ErrorResponse
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &pathErr):
		kind = domain.KindLocalIO
	case errors.As(err, &resp):
		kind = s3CodeKind(string(resp.Code))
		if kind == domain.KindUnknown {
			kind = httpStatusKind(resp.StatusCode)
		}
	}

	return &domain.Error{Op: op, Bucket: bucket, Key: key, Kind: kind, Err: err}
}

// removePartial deletes path and every part file FGetObject left for it.
func removePartial(path string) {
	os.Remove(path)

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, base) && strings.HasSuffix(name, minioPartSuffix) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}

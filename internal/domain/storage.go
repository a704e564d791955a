package domain

import "context"

// BucketStore is the remote object-storage surface the façade delegates to.
// Implementations map their SDK errors onto *Error kinds.
type BucketStore interface {
	CreateBucket(ctx context.Context, name, region string) error
	// BucketRegion reports the region a reachable bucket lives in.
	// A missing bucket yields an error of KindNotFound.
	BucketRegion(ctx context.Context, name string) (string, error)
	ListBuckets(ctx context.Context) ([]string, error)
	UploadFile(ctx context.Context, bucket, key, localPath string) error
	DownloadFile(ctx context.Context, bucket, key, localPath string) error
	ListObjects(ctx context.Context, bucket string) ([]string, error)
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
	DeleteBucket(ctx context.Context, name string) error
}

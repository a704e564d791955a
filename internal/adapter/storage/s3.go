package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	appconfig "github.com/semmidev/bucketeer/internal/config"
	"github.com/semmidev/bucketeer/internal/domain"
)

const (
	// maxDeleteBatch is the DeleteObjects per-request limit.
	maxDeleteBatch = 1000

	bucketRegionHeader = "X-Amz-Bucket-Region"
)

// S3API is the subset of *s3.Client the adapter calls.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	s3manager.UploadAPIClient
	s3manager.DownloadAPIClient
}

type S3Storage struct {
	client     S3API
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	region     string
}

var _ domain.BucketStore = (*S3Storage)(nil)

// NewS3 builds an S3Storage from the storage section. Without static keys the
// SDK's default credential chain applies. A custom endpoint switches to
// path-style addressing when configured, for S3-compatible services.
func NewS3(ctx context.Context, cfg *appconfig.StorageConfig) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return NewS3WithClient(client, cfg.Region), nil
}

// NewS3WithClient wraps an existing client; region is the client's default.
func NewS3WithClient(client S3API, region string) *S3Storage {
	return &S3Storage{
		client:     client,
		uploader:   s3manager.NewUploader(client),
		downloader: s3manager.NewDownloader(client),
		region:     region,
	}
}

func (s *S3Storage) CreateBucket(ctx context.Context, name, region string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(name)}

	var optFns []func(*s3.Options)
	if region != "" {
		// us-east-1 is the one region that rejects an explicit constraint.
		if region != defaultRegion {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(region),
			}
		}
		optFns = append(optFns, withRegion(region))
	}

	if _, err := s.client.CreateBucket(ctx, input, optFns...); err != nil {
		return s3Err("create bucket", name, "", err)
	}
	return nil
}

// BucketRegion asks HeadBucket through the client region. S3 refuses a
// bucket that lives elsewhere with a bodiless 301 naming the real region,
// which still answers the question.
func (s *S3Storage) BucketRegion(ctx context.Context, name string) (string, error) {
	out, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		if region := movedTo(err); region != "" {
			return region, nil
		}
		return "", s3Err("head bucket", name, "", err)
	}

	if region := aws.ToString(out.BucketRegion); region != "" {
		return region, nil
	}
	return s.region, nil
}

func (s *S3Storage) ListBuckets(ctx context.Context) ([]string, error) {
	var names []string

	paginator := s3.NewListBucketsPaginator(s.client, &s3.ListBucketsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s3Err("list buckets", "", "", err)
		}
		for _, b := range page.Buckets {
			names = append(names, aws.ToString(b.Name))
		}
	}

	return names, nil
}

func (s *S3Storage) UploadFile(ctx context.Context, bucket, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return &domain.Error{Op: "upload", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
	}
	defer file.Close()

	err = s.inBucketRegion(func(optFns ...func(*s3.Options)) error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return &domain.Error{Op: "upload", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
		}
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   file,
		}, func(u *s3manager.Uploader) {
			u.ClientOptions = append(u.ClientOptions, optFns...)
		})
		return err
	})
	if err != nil {
		return s3Err("upload", bucket, key, err)
	}
	return nil
}

// DownloadFile writes into a temp file beside localPath and renames it on
// success, so a failed transfer never leaves a partial file.
func (s *S3Storage) DownloadFile(ctx context.Context, bucket, key, localPath string) error {
	ioErr := func(err error) error {
		return &domain.Error{Op: "download", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
	}

	file, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*")
	if err != nil {
		return ioErr(err)
	}
	defer os.Remove(file.Name())

	err = s.inBucketRegion(func(optFns ...func(*s3.Options)) error {
		_, err := s.downloader.Download(ctx, file, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, func(d *s3manager.Downloader) {
			d.ClientOptions = append(d.ClientOptions, optFns...)
		})
		return err
	})
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = ioErr(closeErr)
	}
	if err != nil {
		return s3Err("download", bucket, key, err)
	}

	if err := os.Rename(file.Name(), localPath); err != nil {
		return ioErr(err)
	}
	return nil
}

func (s *S3Storage) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	var keys []string

	err := s.inBucketRegion(func(optFns ...func(*s3.Options)) error {
		keys = keys[:0]
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx, optFns...)
			if err != nil {
				return err
			}
			for _, obj := range page.Contents {
				keys = append(keys, aws.ToString(obj.Key))
			}
		}
		return nil
	})
	if err != nil {
		return nil, s3Err("list objects", bucket, "", err)
	}

	return keys, nil
}

func (s *S3Storage) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	// Once one batch is redirected, the rest go straight to the bucket's region.
	var optFns []func(*s3.Options)

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}
		input := &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}

		out, err := s.client.DeleteObjects(ctx, input, optFns...)
		if region := movedTo(err); region != "" && optFns == nil {
			optFns = []func(*s3.Options){withRegion(region)}
			out, err = s.client.DeleteObjects(ctx, input, optFns...)
		}
		if err != nil {
			return s3Err("delete objects", bucket, "", err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return s3Err("delete objects", bucket, aws.ToString(first.Key), &smithy.GenericAPIError{
				Code:    aws.ToString(first.Code),
				Message: fmt.Sprintf("%s (%d of %d keys failed)", aws.ToString(first.Message), len(out.Errors), len(ids)),
			})
		}
	}
	return nil
}

func (s *S3Storage) DeleteBucket(ctx context.Context, name string) error {
	err := s.inBucketRegion(func(optFns ...func(*s3.Options)) error {
		_, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}, optFns...)
		return err
	})
	if err != nil {
		return s3Err("delete bucket", name, "", err)
	}
	return nil
}

// inBucketRegion runs call through the client region and, if S3 redirects
// to the bucket's own region, once more against that region.
func (s *S3Storage) inBucketRegion(call func(optFns ...func(*s3.Options)) error) error {
	err := call()
	if region := movedTo(err); region != "" {
		return call(withRegion(region))
	}
	return err
}

func withRegion(region string) func(*s3.Options) {
	return func(o *s3.Options) { o.Region = region }
}

// movedTo returns the region S3 names in x-amz-bucket-region when it turns
// a request away from the wrong regional endpoint, or "".
func movedTo(err error) string {
	var respErr *smithyhttp.ResponseError
	if err == nil || !errors.As(err, &respErr) || respErr.Response == nil {
		return ""
	}
	switch respErr.HTTPStatusCode() {
	case http.StatusMovedPermanently, http.StatusTemporaryRedirect, http.StatusBadRequest:
		return respErr.Response.Header.Get(bucketRegionHeader)
	}
	return ""
}

// s3Err classifies an SDK error by its API error code, falling back to the
// HTTP status for bodiless responses such as HeadBucket's.
func s3Err(op, bucket, key string, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}

	kind := domain.KindUnknown

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		kind = s3CodeKind(apiErr.ErrorCode())
	}
	if kind == domain.KindUnknown {
		var respErr *smithyhttp.ResponseError
		if errors.As(err, &respErr) {
			kind = httpStatusKind(respErr.HTTPStatusCode())
		}
	}

	return &domain.Error{Op: op, Bucket: bucket, Key: key, Kind: kind, Err: err}
}

func s3CodeKind(code string) domain.Kind {
	switch code {
	case "NoSuchBucket", "NoSuchKey", "NotFound":
		return domain.KindNotFound
	case "BucketAlreadyExists":
		return domain.KindAlreadyExists
	case "BucketAlreadyOwnedByYou":
		return domain.KindAlreadyOwned
	case "AccessDenied", "Forbidden", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return domain.KindPermissionDenied
	case "BucketNotEmpty":
		return domain.KindNotEmpty
	case "InvalidBucketName", "IllegalLocationConstraintException", "InvalidLocationConstraint", "InvalidArgument":
		return domain.KindInvalidArgument
	case "ServiceUnavailable", "SlowDown", "InternalError", "RequestTimeout":
		return domain.KindUnavailable
	}
	return domain.KindUnknown
}

func httpStatusKind(status int) domain.Kind {
	switch {
	case status == http.StatusNotFound:
		return domain.KindNotFound
	case status == http.StatusForbidden, status == http.StatusUnauthorized:
		return domain.KindPermissionDenied
	case status == http.StatusConflict:
		return domain.KindAlreadyExists
	case status >= 500:
		return domain.KindUnavailable
	}
	return domain.KindUnknown
}

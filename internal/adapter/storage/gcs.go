package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"

	appconfig "github.com/semmidev/bucketeer/internal/config"
	"github.com/semmidev/bucketeer/internal/domain"
)

type GCSStorage struct {
	service *gcs.Service
	project string
}

var _ domain.BucketStore = (*GCSStorage)(nil)

// NewGCS connects to Cloud Storage. Credentials come from credentials_file,
// or the application default chain; a custom endpoint (an emulator) is used
// unauthenticated.
func NewGCS(ctx context.Context, cfg *appconfig.StorageConfig) (*GCSStorage, error) {
	project := cfg.ProjectID

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		creds, err := google.FindDefaultCredentials(ctx, gcs.DevstorageFullControlScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		if project == "" {
			project = creds.ProjectID
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	service, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	return NewGCSWithService(service, project), nil
}

func NewGCSWithService(service *gcs.Service, project string) *GCSStorage {
	return &GCSStorage{service: service, project: project}
}

func (g *GCSStorage) CreateBucket(ctx context.Context, name, region string) error {
	if err := g.requireProject("create bucket"); err != nil {
		return err
	}

	_, err := g.service.Buckets.Insert(g.project, &gcs.Bucket{Name: name, Location: region}).
		Context(ctx).
		Do()
	if err != nil {
		return gcsErr("create bucket", name, "", err)
	}
	return nil
}

// BucketRegion returns the bucket location lower-cased, e.g. "europe-west1".
func (g *GCSStorage) BucketRegion(ctx context.Context, name string) (string, error) {
	bucket, err := g.service.Buckets.Get(name).
		Fields("name", "location").
		Context(ctx).
		Do()
	if err != nil {
		return "", gcsErr("head bucket", name, "", err)
	}
	return strings.ToLower(bucket.Location), nil
}

func (g *GCSStorage) ListBuckets(ctx context.Context) ([]string, error) {
	if err := g.requireProject("list buckets"); err != nil {
		return nil, err
	}

	var names []string
	err := g.service.Buckets.List(g.project).Pages(ctx, func(page *gcs.Buckets) error {
		for _, b := range page.Items {
			names = append(names, b.Name)
		}
		return nil
	})
	if err != nil {
		return nil, gcsErr("list buckets", "", "", err)
	}
	return names, nil
}

func (g *GCSStorage) UploadFile(ctx context.Context, bucket, key, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return &domain.Error{Op: "upload", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
	}
	defer file.Close()

	_, err = g.service.Objects.Insert(bucket, &gcs.Object{Name: key}).
		Media(file).
		Context(ctx).
		Do()
	if err != nil {
		return gcsErr("upload", bucket, key, err)
	}
	return nil
}

func (g *GCSStorage) DownloadFile(ctx context.Context, bucket, key, localPath string) error {
	resp, err := g.service.Objects.Get(bucket, key).Context(ctx).Download()
	if err != nil {
		return gcsErr("download", bucket, key, err)
	}
	defer resp.Body.Close()

	if err := copyInto(localPath, resp.Body); err != nil {
		return &domain.Error{Op: "download", Bucket: bucket, Key: key, Kind: domain.KindLocalIO, Err: err}
	}
	return nil
}

func (g *GCSStorage) ListObjects(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	err := g.service.Objects.List(bucket).Fields("items(name)", "nextPageToken").Pages(ctx, func(page *gcs.Objects) error {
		for _, obj := range page.Items {
			keys = append(keys, obj.Name)
		}
		return nil
	})
	if err != nil {
		return nil, gcsErr("list objects", bucket, "", err)
	}
	return keys, nil
}

// DeleteObjects removes keys one by one; the JSON API has no batch delete.
func (g *GCSStorage) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	for _, key := range keys {
		if err := g.service.Objects.Delete(bucket, key).Context(ctx).Do(); err != nil {
			if derr := gcsErr("delete object", bucket, key, err); !domain.IsKind(derr, domain.KindNotFound) {
				return derr
			}
		}
	}
	return nil
}

func (g *GCSStorage) DeleteBucket(ctx context.Context, name string) error {
	if err := g.service.Buckets.Delete(name).Context(ctx).Do(); err != nil {
		return gcsErr("delete bucket", name, "", err)
	}
	return nil
}

func (g *GCSStorage) requireProject(op string) error {
	if g.project == "" {
		return &domain.Error{Op: op, Kind: domain.KindInvalidArgument, Err: errors.New("storage.project_id is required")}
	}
	return nil
}

// gcsErr maps JSON API status codes. GCS answers 409 both for a taken name
// and for deleting a non-empty bucket, so the operation disambiguates.
func gcsErr(op, bucket, key string, err error) error {
	kind := domain.KindUnknown

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusConflict:
			switch {
			case op == "delete bucket":
				kind = domain.KindNotEmpty
			case strings.Contains(apiErr.Message, "already own"):
				kind = domain.KindAlreadyOwned
			default:
				kind = domain.KindAlreadyExists
			}
		case http.StatusBadRequest:
			kind = domain.KindInvalidArgument
		case http.StatusTooManyRequests:
			kind = domain.KindUnavailable
		default:
			kind = httpStatusKind(apiErr.Code)
		}
	}

	return &domain.Error{Op: op, Bucket: bucket, Key: key, Kind: kind, Err: err}
}

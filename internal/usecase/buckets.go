package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/semmidev/bucketeer/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Naming fixes how "standard" buckets are named and placed.
type Naming struct {
	Prefix string
	Region string
}

// Buckets is the bucket operations façade. It keeps no state between calls:
// every question is asked of the store again.
type Buckets struct {
	store      domain.BucketStore
	compressor domain.Compressor
	logger     Logger
	naming     Naming
}

func NewBuckets(
	store domain.BucketStore,
	compressor domain.Compressor,
	logger Logger,
	naming Naming,
) *Buckets {
	return &Buckets{
		store:      store,
		compressor: compressor,
		logger:     logger,
		naming:     naming,
	}
}

// Create creates a bucket. An empty region leaves placement to the backend.
func (uc *Buckets) Create(ctx context.Context, name, region string) error {
	if name == "" {
		return uc.fail(&domain.Error{Op: "create bucket", Kind: domain.KindInvalidArgument, Err: fmt.Errorf("bucket name is required")})
	}

	if err := uc.store.CreateBucket(ctx, name, region); err != nil {
		return uc.fail(err)
	}

	if region == "" {
		uc.logger.Infof("Created bucket %s", name)
	} else {
		uc.logger.Infof("Created bucket %s in %s", name, region)
	}
	return nil
}

// CreateStandard creates Prefix+suffix in the standard region. The derived
// name is returned even when creation fails.
func (uc *Buckets) CreateStandard(ctx context.Context, suffix string) (string, error) {
	name := uc.StandardName(suffix)
	return name, uc.Create(ctx, name, uc.naming.Region)
}

func (uc *Buckets) StandardName(suffix string) string {
	return uc.naming.Prefix + suffix
}

// Exists reports whether name is reachable and, when region is set, lives
// there. Not-found and region mismatch are (false, nil); failures that leave
// the answer unknown are (false, err).
func (uc *Buckets) Exists(ctx context.Context, name, region string) (bool, error) {
	actual, err := uc.store.BucketRegion(ctx, name)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return false, nil
		}
		return false, uc.fail(err)
	}

	if region != "" && !strings.EqualFold(region, actual) {
		uc.logger.Warnf("Bucket %s is in %s, not %s", name, actual, region)
		return false, nil
	}
	return true, nil
}

func (uc *Buckets) List(ctx context.Context) ([]string, error) {
	names, err := uc.store.ListBuckets(ctx)
	if err != nil {
		return nil, uc.fail(err)
	}
	return names, nil
}

// Upload stores one local file and returns the key it was stored under.
func (uc *Buckets) Upload(ctx context.Context, req domain.UploadRequest) (string, error) {
	key := req.ResolvedKey()
	if err := req.Validate(); err != nil {
		return key, uc.fail(err)
	}

	source := req.LocalPath
	if req.Compress {
		packed, cleanup, err := uc.compressToTemp(req)
		if err != nil {
			return key, uc.fail(err)
		}
		defer cleanup()
		source = packed
	}

	start := time.Now()
	if err := uc.store.UploadFile(ctx, req.Bucket, key, source); err != nil {
		return key, uc.fail(err)
	}

	uc.logger.Infof("Uploaded %s to %s/%s in %s", req.LocalPath, req.Bucket, key, time.Since(start).Round(time.Millisecond))
	return key, nil
}

// Download writes one object to a local file and returns the path written.
func (uc *Buckets) Download(ctx context.Context, req domain.DownloadRequest) (string, error) {
	path := req.ResolvedPath()
	if err := req.Validate(); err != nil {
		return path, uc.fail(err)
	}

	target := path
	if req.Decompress {
		tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*.gz")
		if err != nil {
			return path, uc.fail(&domain.Error{Op: "download", Bucket: req.Bucket, Key: req.Key, Kind: domain.KindLocalIO, Err: err})
		}
		tmp.Close()
		defer os.Remove(tmp.Name())
		target = tmp.Name()
	}

	start := time.Now()
	if err := uc.store.DownloadFile(ctx, req.Bucket, req.Key, target); err != nil {
		return path, uc.fail(err)
	}

	if req.Decompress {
		if err := uc.compressor.Decompress(target, path); err != nil {
			return path, uc.fail(&domain.Error{Op: "download", Bucket: req.Bucket, Key: req.Key, Kind: domain.KindLocalIO, Err: err})
		}
	}

	uc.logger.Infof("Downloaded %s/%s to %s in %s", req.Bucket, req.Key, path, time.Since(start).Round(time.Millisecond))
	return path, nil
}

// Delete empties and removes a bucket. A bucket that does not exist is
// skipped; one whose existence cannot be determined is an error.
func (uc *Buckets) Delete(ctx context.Context, name string) error {
	exists, err := uc.Exists(ctx, name, "")
	if err != nil {
		return err
	}
	if !exists {
		uc.logger.Infof("Bucket %s does not exist, nothing to delete", name)
		return nil
	}

	keys, err := uc.store.ListObjects(ctx, name)
	if err != nil {
		return uc.fail(err)
	}
	if len(keys) > 0 {
		if err := uc.store.DeleteObjects(ctx, name, keys); err != nil {
			return uc.fail(err)
		}
		uc.logger.Infof("Deleted %d object(s) from %s", len(keys), name)
	}

	if err := uc.store.DeleteBucket(ctx, name); err != nil {
		return uc.fail(err)
	}

	uc.logger.Infof("Deleted bucket %s", name)
	return nil
}

func (uc *Buckets) compressToTemp(req domain.UploadRequest) (string, func(), error) {
	tmp, err := os.CreateTemp("", "bucketeer-*.gz")
	if err != nil {
		return "", nil, &domain.Error{Op: "upload", Bucket: req.Bucket, Key: req.Key, Kind: domain.KindLocalIO, Err: err}
	}
	tmp.Close()
	cleanup := func() { os.Remove(tmp.Name()) }

	if err := uc.compressor.Compress(req.LocalPath, tmp.Name()); err != nil {
		cleanup()
		return "", nil, &domain.Error{Op: "upload", Bucket: req.Bucket, Key: req.Key, Kind: domain.KindLocalIO, Err: err}
	}
	return tmp.Name(), cleanup, nil
}

// fail logs err once and returns it unchanged.
func (uc *Buckets) fail(err error) error {
	uc.logger.Errorf("%v", err)
	return err
}

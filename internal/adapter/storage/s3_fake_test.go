package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// fakeS3 is an in-memory S3API. Listings are paged pageSize at a time so
// the adapter's paginators are exercised.
type fakeS3 struct {
	mu            sync.Mutex
	defaultRegion string
	pageSize      int
	buckets       map[string]*fakeBucket
	foreign       map[string]bool
	failures      map[string]error
	failKeys      map[string]bool
	deleteBatches []int
	createRegions []string
}

type fakeBucket struct {
	region  string
	objects map[string][]byte
}

var _ S3API = (*fakeS3)(nil)

func newFakeS3(region string) *fakeS3 {
	return &fakeS3{
		defaultRegion: region,
		pageSize:      2,
		buckets:       map[string]*fakeBucket{},
		foreign:       map[string]bool{},
		failures:      map[string]error{},
		failKeys:      map[string]bool{},
	}
}

func (f *fakeS3) fail(op string) error {
	return f.failures[op]
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateBucket"); err != nil {
		return nil, err
	}

	opts := s3.Options{Region: f.defaultRegion}
	for _, fn := range optFns {
		fn(&opts)
	}
	f.createRegions = append(f.createRegions, opts.Region)

	name := aws.ToString(in.Bucket)
	if f.foreign[name] {
		return nil, &types.BucketAlreadyExists{Message: aws.String("taken")}
	}
	if _, ok := f.buckets[name]; ok {
		return nil, &types.BucketAlreadyOwnedByYou{Message: aws.String("yours")}
	}

	region := opts.Region
	if in.CreateBucketConfiguration != nil && in.CreateBucketConfiguration.LocationConstraint != "" {
		region = string(in.CreateBucketConfiguration.LocationConstraint)
	}
	if region == "" {
		region = "us-east-1"
	}
	f.buckets[name] = &fakeBucket{region: region, objects: map[string][]byte{}}
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("HeadBucket"); err != nil {
		return nil, err
	}

	b, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{BucketRegion: aws.String(b.region)}, nil
}

func (f *fakeS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListBuckets"); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	page, next := f.page(names, in.ContinuationToken)
	out := &s3.ListBucketsOutput{ContinuationToken: next}
	for _, name := range page {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListObjectsV2"); err != nil {
		return nil, err
	}

	b, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	page, next := f.page(keys, in.ContinuationToken)
	out := &s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(next != nil),
		NextContinuationToken: next,
	}
	for _, key := range page {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3) page(items []string, token *string) ([]string, *string) {
	start := 0
	if token != nil {
		start, _ = strconv.Atoi(*token)
	}
	end := min(start+f.pageSize, len(items))
	if end < len(items) {
		return items[start:end], aws.String(strconv.Itoa(end))
	}
	return items[start:end], nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteObjects"); err != nil {
		return nil, err
	}

	b, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}

	f.deleteBatches = append(f.deleteBatches, len(in.Delete.Objects))
	out := &s3.DeleteObjectsOutput{}
	for _, id := range in.Delete.Objects {
		key := aws.ToString(id.Key)
		if f.failKeys[key] {
			out.Errors = append(out.Errors, types.Error{
				Key: id.Key, Code: aws.String("AccessDenied"), Message: aws.String("Access Denied"),
			})
			continue
		}
		delete(b.objects, key)
	}
	return out, nil
}

func (f *fakeS3) DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteBucket"); err != nil {
		return nil, err
	}

	name := aws.ToString(in.Bucket)
	b, ok := f.buckets[name]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	if len(b.objects) > 0 {
		return nil, &smithy.GenericAPIError{Code: "BucketNotEmpty", Message: "The bucket you tried to delete is not empty"}
	}
	delete(f.buckets, name)
	return &s3.DeleteBucketOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("PutObject"); err != nil {
		return nil, err
	}

	b, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	b.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{ETag: aws.String(fmt.Sprintf("%q", strconv.Itoa(len(data))))}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetObject"); err != nil {
		return nil, err
	}

	b, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	data, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	total := int64(len(data))
	start, end := int64(0), total-1
	if r := aws.ToString(in.Range); r != "" {
		bounds := strings.SplitN(strings.TrimPrefix(r, "bytes="), "-", 2)
		start, _ = strconv.ParseInt(bounds[0], 10, 64)
		if len(bounds) == 2 && bounds[1] != "" {
			end, _ = strconv.ParseInt(bounds[1], 10, 64)
		}
	}
	if start >= total {
		return nil, &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusRequestedRangeNotSatisfiable}},
			Err:      errors.New("InvalidRange"),
		}
	}
	end = min(end, total-1)

	chunk := data[start : end+1]
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(chunk)),
		ContentLength: aws.Int64(int64(len(chunk))),
		ContentRange:  aws.String(fmt.Sprintf("bytes %d-%d/%d", start, end, total)),
		ETag:          aws.String(fmt.Sprintf("%q", strconv.Itoa(len(data)))),
	}, nil
}

var errMultipart = errors.New("multipart uploads are not supported by fakeS3")

func (f *fakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errMultipart
}

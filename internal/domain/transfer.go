package domain

import (
	"path/filepath"
	"strings"
)

const gzipSuffix = ".gz"

// UploadRequest describes one local file going into one (bucket, key) pair.
type UploadRequest struct {
	LocalPath string
	Bucket    string
	// Key defaults to the slash form of LocalPath, with ".gz" appended
	// when Compress is set.
	Key      string
	Compress bool
}

// ResolvedKey returns the object key the upload will be stored under.
func (r UploadRequest) ResolvedKey() string {
	if r.Key != "" {
		return r.Key
	}
	key := filepath.ToSlash(r.LocalPath)
	if r.Compress {
		key += gzipSuffix
	}
	return key
}

// Validate reports missing required fields.
func (r UploadRequest) Validate() error {
	if r.LocalPath == "" {
		return &Error{Op: "upload", Bucket: r.Bucket, Kind: KindInvalidArgument, Err: errMissing("local path")}
	}
	if r.Bucket == "" {
		return &Error{Op: "upload", Key: r.Key, Kind: KindInvalidArgument, Err: errMissing("bucket name")}
	}
	return nil
}

// DownloadRequest describes one object copied into one local file.
type DownloadRequest struct {
	Bucket string
	Key    string
	// LocalPath defaults to Key in OS path form, minus a trailing ".gz"
	// when Decompress is set.
	LocalPath  string
	Decompress bool
}

// ResolvedPath returns the local file the download will write.
func (r DownloadRequest) ResolvedPath() string {
	if r.LocalPath != "" {
		return r.LocalPath
	}
	path := filepath.FromSlash(r.Key)
	if r.Decompress {
		if trimmed := strings.TrimSuffix(path, gzipSuffix); trimmed != "" {
			path = trimmed
		}
	}
	return path
}

func (r DownloadRequest) Validate() error {
	if r.Bucket == "" {
		return &Error{Op: "download", Key: r.Key, Kind: KindInvalidArgument, Err: errMissing("bucket name")}
	}
	if r.Key == "" {
		return &Error{Op: "download", Bucket: r.Bucket, Kind: KindInvalidArgument, Err: errMissing("object key")}
	}
	return nil
}

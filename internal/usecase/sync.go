package usecase

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/semmidev/bucketeer/internal/domain"
)

// Sync runs one SyncJob: every file is uploaded independently, so a single
// failure never stops the rest.
type Sync struct {
	job      domain.SyncJob
	buckets  *Buckets
	notifier domain.Notifier
	logger   Logger
}

func NewSync(job domain.SyncJob, buckets *Buckets, notifier domain.Notifier, logger Logger) *Sync {
	return &Sync{
		job:      job,
		buckets:  buckets,
		notifier: notifier,
		logger:   logger,
	}
}

// Execute satisfies the scheduler's job signature. It returns an error only
// when at least one file failed.
func (uc *Sync) Execute(ctx context.Context) error {
	report := uc.Run(ctx)

	if uc.notifier != nil {
		if err := uc.notifier.Notify(ctx, FormatReport(report)); err != nil {
			uc.logger.Warnf("[%s] Failed to send notification: %v", uc.job.Name, err)
		}
	}

	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d file(s) failed", len(report.Failed), len(uc.job.Files))
	}
	return nil
}

func (uc *Sync) Run(ctx context.Context) domain.SyncReport {
	start := time.Now()
	uc.logger.Infof("[%s] Syncing %d file(s) to %s", uc.job.Name, len(uc.job.Files), uc.job.Bucket)

	report := domain.SyncReport{
		Job:    uc.job.Name,
		Bucket: uc.job.Bucket,
		Failed: map[string]error{},
	}

	owners := make(map[string]string, len(uc.job.Files))
	for _, file := range uc.job.Files {
		if err := ctx.Err(); err != nil {
			report.Failed[file] = err
			continue
		}

		key := SyncKey(uc.job, file)
		if owner, taken := owners[key]; taken {
			report.Failed[file] = &domain.Error{
				Op: "upload", Bucket: uc.job.Bucket, Key: key, Kind: domain.KindInvalidArgument,
				Err: fmt.Errorf("key already used by %s", owner),
			}
			uc.logger.Errorf("%v", report.Failed[file])
			continue
		}
		owners[key] = file

		key, err := uc.buckets.Upload(ctx, domain.UploadRequest{
			LocalPath: file,
			Bucket:    uc.job.Bucket,
			Key:       key,
			Compress:  uc.job.Compress,
		})
		if err != nil {
			report.Failed[file] = err
			continue
		}
		report.Uploaded = append(report.Uploaded, key)
	}

	uc.logger.Infof("[%s] Sync finished in %s: %d uploaded, %d failed",
		uc.job.Name, time.Since(start).Round(time.Millisecond), len(report.Uploaded), len(report.Failed))
	return report
}

// SyncKey is KeyPrefix joined with the file's base name, plus ".gz" when
// the job compresses.
func SyncKey(job domain.SyncJob, file string) string {
	key := path.Join(job.KeyPrefix, filepath.Base(file))
	if job.Compress {
		key += ".gz"
	}
	return key
}

func FormatReport(r domain.SyncReport) string {
	var b strings.Builder

	status := "✅"
	if len(r.Failed) > 0 {
		status = "⚠️"
	}
	fmt.Fprintf(&b, "%s Sync %s → %s\n", status, r.Job, r.Bucket)
	fmt.Fprintf(&b, "Uploaded: %d, failed: %d\n", len(r.Uploaded), len(r.Failed))

	failed := make([]string, 0, len(r.Failed))
	for file := range r.Failed {
		failed = append(failed, file)
	}
	sort.Strings(failed)
	for _, file := range failed {
		fmt.Fprintf(&b, "• %s: %s\n", file, domain.KindOf(r.Failed[file]))
	}

	return strings.TrimRight(b.String(), "\n")
}

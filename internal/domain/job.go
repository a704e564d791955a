package domain

import "context"

// SyncJob uploads a fixed set of local files to a bucket on a cron schedule.
type SyncJob struct {
	Name      string
	Schedule  string
	Bucket    string
	Files     []string
	KeyPrefix string
	Compress  bool
}

// SyncReport summarizes one run of a SyncJob.
type SyncReport struct {
	Job      string
	Bucket   string
	Uploaded []string
	Failed   map[string]error
}

// Notifier delivers a human-readable message somewhere outside the process.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

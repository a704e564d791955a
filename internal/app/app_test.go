package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/semmidev/bucketeer/internal/adapter/storage"
	"github.com/semmidev/bucketeer/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewStore(t *testing.T) {
	Convey("Given storage configurations", t, func() {
		ctx := context.Background()

		Convey("The local provider should build a LocalStorage", func() {
			store, err := newStore(ctx, &config.StorageConfig{
				Provider:  config.ProviderLocal,
				LocalPath: filepath.Join(t.TempDir(), "data"),
			})
			So(err, ShouldBeNil)
			_, ok := store.(*storage.LocalStorage)
			So(ok, ShouldBeTrue)
		})

		Convey("The minio provider should build a MinioStorage", func() {
			store, err := newStore(ctx, &config.StorageConfig{
				Provider: config.ProviderMinio,
				Endpoint: "localhost:9000",
				Region:   "us-east-1",
			})
			So(err, ShouldBeNil)
			_, ok := store.(*storage.MinioStorage)
			So(ok, ShouldBeTrue)
		})

		Convey("An unknown provider should fail", func() {
			_, err := newStore(ctx, &config.StorageConfig{Provider: "ftp"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRunWithoutJobs(t *testing.T) {
	Convey("Given an app with no enabled sync jobs", t, func() {
		cfg := &config.Config{
			App:     config.AppConfig{Name: "bucketeer", LogLevel: "error"},
			Storage: config.StorageConfig{Provider: config.ProviderLocal, LocalPath: t.TempDir()},
			Jobs:    []config.JobConfig{{Name: "off", Enabled: false}},
		}
		application, err := New(context.Background(), cfg)
		So(err, ShouldBeNil)
		defer application.Shutdown()

		Convey("Run should refuse to start", func() {
			err := application.Run(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no enabled sync jobs")
		})
	})
}

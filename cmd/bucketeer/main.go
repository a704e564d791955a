package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/semmidev/bucketeer/internal/app"
	"github.com/semmidev/bucketeer/internal/config"
	"github.com/semmidev/bucketeer/internal/domain"
)

const usage = `Usage: bucketeer [-config path] <command> [args]

Commands:
  create <name> [region]            create a bucket
  create-standard <suffix>          create <prefix><suffix> in the standard region
  exists <name> [region]            exit 0 if the bucket exists (in region), 1 otherwise
  list                              list every bucket
  upload [-gz] <file> <bucket> [key]
  download [-gz] <bucket> <key> [path]
  delete <bucket>                   empty and remove a bucket
  serve                             run the scheduled sync jobs
`

// errAbsent makes "exists" exit 1 without printing an error.
var errAbsent = errors.New("bucket does not exist")

func main() {
	os.Exit(exitCode(run(), log.Printf))
}

// exitCode maps the result of run to a process status. Façade failures were
// already logged where they happened, so only other errors are reported.
func exitCode(err error, report func(format string, args ...interface{})) int {
	var derr *domain.Error
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errAbsent), errors.As(err, &derr):
		return 1
	default:
		report("Error: %v\n", err)
		return 1
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	return dispatch(ctx, application, flag.Arg(0), flag.Args()[1:])
}

func dispatch(ctx context.Context, a *app.App, command string, args []string) error {
	buckets := a.Buckets()

	switch command {
	case "create":
		if err := argCount(command, args, 1, 2); err != nil {
			return err
		}
		return buckets.Create(ctx, args[0], optional(args, 1))

	case "create-standard":
		if err := argCount(command, args, 1, 1); err != nil {
			return err
		}
		name, err := buckets.CreateStandard(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(name)
		return nil

	case "exists":
		if err := argCount(command, args, 1, 2); err != nil {
			return err
		}
		ok, err := buckets.Exists(ctx, args[0], optional(args, 1))
		if err != nil {
			return err
		}
		if !ok {
			return errAbsent
		}
		return nil

	case "list":
		names, err := buckets.List(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil

	case "upload":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		gz := fs.Bool("gz", false, "gzip the file before uploading")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := argCount(command, fs.Args(), 2, 3); err != nil {
			return err
		}
		key, err := buckets.Upload(ctx, domain.UploadRequest{
			LocalPath: fs.Arg(0),
			Bucket:    fs.Arg(1),
			Key:       fs.Arg(2),
			Compress:  *gz,
		})
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil

	case "download":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		gz := fs.Bool("gz", false, "gunzip the object after downloading")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := argCount(command, fs.Args(), 2, 3); err != nil {
			return err
		}
		path, err := buckets.Download(ctx, domain.DownloadRequest{
			Bucket:     fs.Arg(0),
			Key:        fs.Arg(1),
			LocalPath:  fs.Arg(2),
			Decompress: *gz,
		})
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil

	case "delete":
		if err := argCount(command, args, 1, 1); err != nil {
			return err
		}
		return buckets.Delete(ctx, args[0])

	case "serve":
		return a.Run(ctx)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func argCount(command string, args []string, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return fmt.Errorf("%s: expected %d to %d argument(s), got %d", command, lo, hi, len(args))
	}
	return nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ilicop/internal/config"
	"ilicop/internal/core"
	"ilicop/internal/gwp"
	"ilicop/internal/ilitools"
	"ilicop/internal/storage"
	"ilicop/pkg/api"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	exitFailed  = 1
	exitInvalid = 2
)

type catalogueFlag []string

func (c *catalogueFlag) String() string {
	return strings.Join(*c, ",")
}

func (c *catalogueFlag) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// setupLogging returns the rotating log file, or nil if LOG_FILE is unset.
func setupLogging(cfg *config.Config) *lumberjack.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("invalid LOG_LEVEL '%s': %v", cfg.LogLevel, err)
	}

	var out io.Writer = os.Stderr
	var logFile *lumberjack.Logger

	if cfg.LogFile != "" {
		logFile = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, logFile)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return logFile
}

func createArchiveStore(ctx context.Context, cfg *config.Config) storage.ObjectStore {
	switch {
	case cfg.ArchiveBucket != "":
		store, err := storage.NewS3ObjectStore(ctx, cfg.ArchiveBucket, storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("failed to create S3 archive store: %v", err)
		}
		if cfg.ArchiveCreateBucket {
			if err := store.CreateBucket(ctx); err != nil {
				log.Fatalf("failed to create archive bucket: %v", err)
			}
		}
		if err := store.ValidateAccess(ctx); err != nil {
			log.Fatalf("archive bucket is not accessible: %v", err)
		}
		return store

	case cfg.ArchiveLocalDir != "":
		store, err := storage.NewLocalObjectStore(cfg.ArchiveLocalDir)
		if err != nil {
			log.Fatalf("failed to create local archive store: %v", err)
		}
		return store

	default:
		return nil
	}
}

func main() {
	var (
		envFile    string
		profileId  string
		transfer   string
		models     string
		jobId      string
		catalogues catalogueFlag
	)

	flag.StringVar(&envFile, "env", "", "path to load env from")
	flag.StringVar(&profileId, "profile", "DEFAULT", "profile id used for GWP processing")
	flag.StringVar(&transfer, "transfer", "", "transfer file to validate (.xtf, .itf, .xml or .gpkg)")
	flag.StringVar(&models, "models", "", "semicolon separated model names, only used for .gpkg files")
	flag.StringVar(&jobId, "job-id", "", "job id, a new one is generated if empty")
	flag.Var(&catalogues, "catalogue", "additional catalogue file, may be repeated")
	flag.Parse()

	if transfer == "" {
		log.Fatalf("-transfer is required")
	}

	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logFile := setupLogging(cfg)
	closeLog := func() {
		if logFile != nil {
			logFile.Close()
		}
	}
	defer closeLog()

	id := uuid.New()
	if jobId != "" {
		if id, err = uuid.Parse(jobId); err != nil {
			log.Fatalf("invalid job id '%s': %v", jobId, err)
		}
	}

	env := ilitools.NewEnvironment(cfg)
	slog.Info("ilitools environment" + env.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor := ilitools.NewExecutor(env, ilitools.NewRunner(env.JavaExecutable))
	processor := gwp.NewProcessor(gwp.OptionsFromConfig(cfg), executor)

	runner := core.NewJobRunner(cfg.JobsDir, executor, processor, createArchiveStore(ctx, cfg))

	outcome, err := runner.Run(ctx, core.Job{
		Id:                           id,
		TransferFilePath:             transfer,
		Profile:                      api.Profile{Id: profileId},
		AdditionalCatalogueFilePaths: catalogues,
		GpkgModelNames:               models,
	})
	if err != nil {
		slog.Error("job failed", "job_id", id, "error", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(outcome); err != nil {
		slog.Error("error writing job outcome", "error", err)
	}

	switch outcome.Status {
	case api.JobCompleted:
		return
	case api.JobInvalid:
		closeLog()
		os.Exit(exitInvalid)
	default:
		closeLog()
		os.Exit(exitFailed)
	}
}

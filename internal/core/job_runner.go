package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ilicop/internal/gwp"
	"ilicop/internal/ilitools"
	"ilicop/internal/storage"
	"ilicop/pkg/api"

	"github.com/google/uuid"
)

const gpkgExtension = ".gpkg"

type Validator interface {
	Validate(ctx context.Context, request ilitools.ValidationRequest) ilitools.Result
}

type PostProcessor interface {
	Run(ctx context.Context, files storage.FileProvider, jobId uuid.UUID, transferFile api.NamedFile, profile api.Profile) (gwp.Outcome, error)
}

type Job struct {
	Id               uuid.UUID
	TransferFilePath string
	Profile          api.Profile

	AdditionalCatalogueFilePaths []string
	GpkgModelNames               string
}

// JobRunner runs the chain of a single job: validation, GWP post-processing
// and archive publishing. Each job gets its own working directory below
// jobsDir, so Run may be called concurrently for different jobs.
type JobRunner struct {
	jobsDir   string
	validator Validator
	processor PostProcessor

	// Optional, finished archives are only kept in the job directory if nil.
	archives storage.ObjectStore
}

func NewJobRunner(jobsDir string, validator Validator, processor PostProcessor, archives storage.ObjectStore) *JobRunner {
	return &JobRunner{
		jobsDir:   jobsDir,
		validator: validator,
		processor: processor,
		archives:  archives,
	}
}

// Run returns an error only for failures that abort the whole job, like I/O
// errors while setting up the job directory or writing and publishing the
// archive. Invalid transfer files and tool failures are reported through
// the outcome status.
func (r *JobRunner) Run(ctx context.Context, job Job) (api.JobOutcome, error) {
	outcome := api.JobOutcome{JobId: job.Id, Status: api.JobFailed, ExitCode: ilitools.FailureExitCode}

	files, err := storage.NewLocalFileProvider(r.jobsDir)
	if err != nil {
		return outcome, err
	}
	if err := files.Initialize(job.Id); err != nil {
		return outcome, err
	}

	transferFile, err := stageTransferFile(files, job.TransferFilePath)
	if err != nil {
		return outcome, fmt.Errorf("error staging transfer file for job %s: %w", job.Id, err)
	}

	slog.Info("processing job", "job_id", job.Id, "transfer_file", transferFile.DisplayName, "profile_id", job.Profile.Id)

	result := r.validator.Validate(ctx, NewValidationRequest(files.HomeDirectory(), transferFile, job))
	outcome.ExitCode = result.ExitCode

	switch {
	case result.Err != nil || result.ExitCode == ilitools.FailureExitCode:
		if result.Err != nil {
			outcome.Error = result.Err.Error()
		}
		slog.Error("validation could not be completed", "job_id", job.Id, "exit_code", result.ExitCode, "error", result.Err)
		outcome.Artifacts = jobFiles(files)
		return outcome, nil

	case result.ExitCode != 0:
		slog.Info("transfer file is invalid", "job_id", job.Id, "exit_code", result.ExitCode)
		outcome.Status = api.JobInvalid
		outcome.Artifacts = jobFiles(files)
		return outcome, nil
	}

	processed, err := r.processor.Run(ctx, files, job.Id, transferFile, job.Profile)
	if err != nil {
		outcome.Error = err.Error()
		return outcome, fmt.Errorf("error post-processing job %s: %w", job.Id, err)
	}

	outcome.ContainerPath = processed.ContainerPath
	outcome.TranslatedPath = processed.TranslatedPath
	outcome.ArchivePath = processed.ArchivePath

	if processed.ArchivePath != "" && r.archives != nil {
		key, err := r.publishArchive(ctx, job.Id, processed.ArchivePath)
		if err != nil {
			outcome.Error = err.Error()
			return outcome, err
		}
		outcome.ArchiveKey = key
	}

	outcome.Status = api.JobCompleted
	outcome.Artifacts = jobFiles(files)

	slog.Info("job completed", "job_id", job.Id, "stage", processed.Stage, "archive", outcome.ArchivePath)

	return outcome, nil
}

// NewValidationRequest places the generated logs next to the transfer file
// as <stem>_log.log and <stem>_log.xtf. GeoPackages are validated with
// ili2gpkg, everything else with ilivalidator.
func NewValidationRequest(homeDir string, transferFile api.NamedFile, job Job) ilitools.ValidationRequest {
	ext := filepath.Ext(transferFile.DisplayName)
	stem := strings.TrimSuffix(transferFile.DisplayName, ext)

	return ilitools.ValidationRequest{
		JobId:                        job.Id,
		TransferFileName:             transferFile.DisplayName,
		TransferFilePath:             transferFile.FilePath,
		LogFilePath:                  filepath.Join(homeDir, stem+"_log.log"),
		XtfLogFilePath:               filepath.Join(homeDir, stem+"_log.xtf"),
		AdditionalCatalogueFilePaths: job.AdditionalCatalogueFilePaths,
		GpkgModelNames:               job.GpkgModelNames,
		IsGeoPackage:                 strings.EqualFold(ext, gpkgExtension),
	}
}

// publishArchive replaces everything stored under the job id, so a rerun
// never leaves archives of an earlier run next to the new one.
func (r *JobRunner) publishArchive(ctx context.Context, jobId uuid.UUID, archivePath string) (string, error) {
	prefix := jobId.String() + "/"
	key := prefix + filepath.Base(archivePath)

	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("error opening archive %s: %w", archivePath, err)
	}
	defer file.Close()

	if err := r.archives.DeleteObjects(ctx, prefix); err != nil {
		return "", fmt.Errorf("error removing previous archives of job %s: %w", jobId, err)
	}

	if err := r.archives.PutObject(ctx, key, file); err != nil {
		return "", fmt.Errorf("error publishing archive for job %s: %w", jobId, err)
	}

	slog.Info("published archive", "job_id", jobId, "key", key)
	return key, nil
}

// stageTransferFile copies the transfer file into the job directory unless
// it already lives there.
func stageTransferFile(files storage.FileProvider, path string) (api.NamedFile, error) {
	src, err := filepath.Abs(path)
	if err != nil {
		return api.NamedFile{}, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}

	name := filepath.Base(src)
	dst := filepath.Join(files.HomeDirectory(), name)
	if src == dst {
		return api.NamedFile{FilePath: dst, DisplayName: name}, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return api.NamedFile{}, fmt.Errorf("error opening transfer file: %w", err)
	}
	defer in.Close()

	out, err := files.CreateFile(name)
	if err != nil {
		return api.NamedFile{}, err
	}

	_, copyErr := io.Copy(out, in)
	if err := errors.Join(copyErr, out.Close()); err != nil {
		return api.NamedFile{}, fmt.Errorf("error copying transfer file: %w", err)
	}

	return api.NamedFile{FilePath: dst, DisplayName: name}, nil
}

func jobFiles(files storage.FileProvider) []string {
	names, err := files.GetFiles()
	if err != nil {
		slog.Warn("error listing job files", "dir", files.HomeDirectory(), "error", err)
		return nil
	}
	return names
}

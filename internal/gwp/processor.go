package gwp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ilicop/internal/ilitools"
	"ilicop/internal/storage"
	"ilicop/pkg/api"

	"github.com/google/uuid"
)

const TranslatedFileSuffix = "_translated.xtf"

type Stage string

const (
	StageNotStarted         Stage = "NOT_STARTED"
	StageSkipped            Stage = "SKIPPED"
	StageTemplateCopied     Stage = "TEMPLATE_COPIED"
	StageDataImported       Stage = "DATA_IMPORTED"
	StageLogImported        Stage = "LOG_IMPORTED"
	StageTranslationDecided Stage = "TRANSLATION_DECIDED"
	StageTranslated         Stage = "TRANSLATED"
	StageBundled            Stage = "BUNDLED"
)

// GpkgExecutor is the part of ilitools.Executor used after validation.
type GpkgExecutor interface {
	ImportToGpkg(ctx context.Context, request ilitools.ImportRequest) ilitools.Result

	ExportFromGpkg(ctx context.Context, request ilitools.ExportRequest) ilitools.Result
}

type Outcome struct {
	Stage Stage

	ContainerPath  string
	TranslatedPath string
	ArchivePath    string

	Artifacts []api.NamedFile
}

func (o Outcome) Skipped() bool {
	return o.Stage == StageSkipped
}

// Processor runs the GWP steps after a successful validation: template copy,
// data and log import, optional translation and the result archive. Only the
// external tool invocations observe ctx; file and database steps run to
// completion.
type Processor struct {
	options  Options
	executor GpkgExecutor
	bundler  *Bundler
}

func NewProcessor(options Options, executor GpkgExecutor) *Processor {
	return &Processor{
		options:  options,
		executor: executor,
		bundler:  NewBundler(),
	}
}

// Run processes one job. files must already be initialized for jobId. An
// error is only returned for unusable profile settings and for failures
// writing the archive.
func (p *Processor) Run(ctx context.Context, files storage.FileProvider, jobId uuid.UUID, transferFile api.NamedFile, profile api.Profile) (Outcome, error) {
	outcome := Outcome{Stage: StageNotStarted}

	if p.options.ConfigDir == "" || !dirExists(p.options.profileDir(profile.Id)) {
		slog.Info("no configuration directory found for profile, skipping GWP processing", "profile_id", profile.Id, "job_id", jobId)
		outcome.Stage = StageSkipped
		return outcome, nil
	}

	options, err := p.options.ForProfile(profile.Id)
	if err != nil {
		return outcome, err
	}

	files.SetTransferFileName(transferFile.DisplayName)

	containerPath, ok := p.copyTemplateGpkg(files, options, jobId, transferFile, profile)
	if ok {
		outcome.Stage = StageTemplateCopied
		outcome.ContainerPath = containerPath

		if p.importResults(ctx, files, &outcome, jobId, transferFile, profile) {
			p.translate(ctx, files, &outcome, options, jobId, transferFile, profile)
		} else {
			removeFile(containerPath, jobId)
			outcome.ContainerPath = ""
		}
	}

	additionalDir := filepath.Join(options.profileDir(profile.Id), options.AdditionalFilesFolderName)
	entries := p.bundler.CollectFiles(files, additionalDir, outcome.ContainerPath, options.DataGpkgFileName, outcome.TranslatedPath)

	slog.Info("creating ZIP", "job_id", jobId, "entries", len(entries))
	archivePath, err := p.bundler.Bundle(files, options.ZipFileName, entries)
	if err != nil {
		return outcome, fmt.Errorf("error creating archive for job %s: %w", jobId, err)
	}
	slog.Info("successfully created ZIP", "job_id", jobId, "archive", archivePath)

	outcome.Stage = StageBundled
	outcome.ArchivePath = archivePath
	outcome.Artifacts = entries

	return outcome, nil
}

func (p *Processor) copyTemplateGpkg(files storage.FileProvider, options Options, jobId uuid.UUID, transferFile api.NamedFile, profile api.Profile) (string, bool) {
	templatePath := filepath.Join(options.profileDir(profile.Id), options.DataGpkgFileName)
	containerPath := filepath.Join(files.HomeDirectory(), options.DataGpkgFileName)

	if filepath.Clean(containerPath) == filepath.Clean(transferFile.FilePath) {
		slog.Warn("transfer file has the name of the data GeoPackage, skipping GWP GeoPackage creation", "transfer_file", transferFile.DisplayName, "profile_id", profile.Id, "job_id", jobId)
		return "", false
	}

	src, err := os.Open(templatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("no data GeoPackage template found for profile, skipping GWP GeoPackage creation", "template", templatePath, "profile_id", profile.Id, "job_id", jobId)
		} else {
			slog.Error("error opening data GeoPackage template", "template", templatePath, "job_id", jobId, "error", err)
		}
		return "", false
	}
	defer src.Close()

	dst, err := files.CreateFile(containerPath)
	if err != nil {
		slog.Error("error creating data GeoPackage", "path", containerPath, "job_id", jobId, "error", err)
		return "", false
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		slog.Error("error copying data GeoPackage template", "template", templatePath, "job_id", jobId, "error", err)
		removeFile(containerPath, jobId)
		return "", false
	}

	return containerPath, true
}

// importResults imports the transfer file and the xtf log. Both imports are
// attempted, and false is returned if either of them failed.
func (p *Processor) importResults(ctx context.Context, files storage.FileProvider, outcome *Outcome, jobId uuid.UUID, transferFile api.NamedFile, profile api.Profile) bool {
	dataResult := p.executor.ImportToGpkg(ctx, ilitools.ImportRequest{
		JobId:      jobId,
		DbFilePath: outcome.ContainerPath,
		Dataset:    ilitools.DatasetData,
		FilePath:   transferFile.FilePath,
		FileName:   transferFile.DisplayName,
		Profile:    profile,
	})
	if dataResult.Succeeded() {
		outcome.Stage = StageDataImported
	} else {
		slog.Error("data import into GeoPackage failed", "job_id", jobId, "exit_code", dataResult.ExitCode, "error", dataResult.Err)
	}

	logResult := ilitools.Result{}
	if logPath, ok := files.GetLogFile(storage.LogKindXtf); ok {
		logResult = p.executor.ImportToGpkg(ctx, ilitools.ImportRequest{
			JobId:      jobId,
			DbFilePath: outcome.ContainerPath,
			Dataset:    ilitools.DatasetLogs,
			FilePath:   logPath,
			FileName:   filepath.Base(logPath),
			Profile:    profile,
		})
		if logResult.Succeeded() {
			if dataResult.Succeeded() {
				outcome.Stage = StageLogImported
			}
		} else {
			slog.Error("log import into GeoPackage failed", "job_id", jobId, "exit_code", logResult.ExitCode, "error", logResult.Err)
		}
	} else {
		slog.Warn("no xtf log found, skipping log import", "job_id", jobId)
		if dataResult.Succeeded() {
			outcome.Stage = StageLogImported
		}
	}

	return dataResult.Succeeded() && logResult.Succeeded()
}

func (p *Processor) translate(ctx context.Context, files storage.FileProvider, outcome *Outcome, options Options, jobId uuid.UUID, transferFile api.NamedFile, profile api.Profile) {
	metadata, err := ReadContainerMetadata(outcome.ContainerPath)
	if err != nil {
		slog.Error("error reading GeoPackage metadata, skipping translation", "job_id", jobId, "error", err)
		return
	}
	outcome.Stage = StageTranslationDecided

	if !IsTranslationNeeded(metadata.Topics, metadata.ModelNames) {
		slog.Info("no translation needed", "job_id", jobId, "models", metadata.ModelNames)
		return
	}

	name := TranslatedFileName(transferFile.DisplayName)
	path := filepath.Join(files.HomeDirectory(), name)

	result := p.executor.ExportFromGpkg(ctx, ilitools.ExportRequest{
		JobId:        jobId,
		DbFilePath:   outcome.ContainerPath,
		Dataset:      ilitools.DatasetData,
		FilePath:     path,
		FileName:     name,
		Profile:      profile,
		ExportModels: options.ExportModels,
	})
	if !result.Succeeded() {
		slog.Error("translation of transfer file failed", "job_id", jobId, "exit_code", result.ExitCode, "error", result.Err)
		removeFile(path, jobId)
		return
	}

	outcome.Stage = StageTranslated
	outcome.TranslatedPath = path
}

func TranslatedFileName(transferFileName string) string {
	base := filepath.Base(transferFileName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + TranslatedFileSuffix
}

func removeFile(path string, jobId uuid.UUID) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("error removing file", "path", path, "job_id", jobId, "error", err)
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

package ilitools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Executor runs ilivalidator and ili2gpkg. Configuration problems are
// reported as a failed Result wrapping ErrNotInitialized or
// ErrUnsupportedRequest, and no process is started in that case.
type Executor struct {
	env     *Environment
	builder *CommandBuilder
	runner  ProcessRunner
}

func NewExecutor(env *Environment, runner ProcessRunner) *Executor {
	return &Executor{
		env:     env,
		builder: NewCommandBuilder(env),
		runner:  runner,
	}
}

func (e *Executor) Validate(ctx context.Context, request ValidationRequest) Result {
	if request.IsGeoPackage {
		return e.validateWithIli2Gpkg(ctx, request)
	}
	return e.validateWithIlivalidator(ctx, request)
}

func (e *Executor) validateWithIlivalidator(ctx context.Context, request ValidationRequest) Result {
	if !e.env.IsIlivalidatorInitialized() {
		return configFailure("ilivalidator", request.JobId, request.TransferFileName, fmt.Errorf("ilivalidator: %w", ErrNotInitialized))
	}

	slog.Info("starting validation", "job_id", request.JobId, "transfer_file", request.TransferFileName, "tool", "ilivalidator")

	return e.run(ctx, "ilivalidator", request.JobId, request.TransferFileName, e.builder.CreateIlivalidatorCommand(request))
}

func (e *Executor) validateWithIli2Gpkg(ctx context.Context, request ValidationRequest) Result {
	if !e.env.IsIli2GpkgInitialized() {
		return configFailure("ili2gpkg", request.JobId, request.TransferFileName, fmt.Errorf("ili2gpkg: %w", ErrNotInitialized))
	}

	args, err := e.builder.CreateIli2GpkgCommand(request)
	if err != nil {
		return configFailure("ili2gpkg", request.JobId, request.TransferFileName, err)
	}

	slog.Info("starting validation", "job_id", request.JobId, "transfer_file", request.TransferFileName, "tool", "ili2gpkg")

	return e.run(ctx, "ili2gpkg", request.JobId, request.TransferFileName, args)
}

func (e *Executor) ImportToGpkg(ctx context.Context, request ImportRequest) Result {
	if !e.env.hasIli2Gpkg() {
		return configFailure("ili2gpkg", request.JobId, request.FileName, fmt.Errorf("ili2gpkg: %w", ErrNotInitialized))
	}

	slog.Info("importing file into GeoPackage", "job_id", request.JobId, "file", request.FileName, "dataset", request.Dataset, "db_file", request.DbFilePath, "profile_id", request.Profile.Id)

	return e.run(ctx, "ili2gpkg", request.JobId, request.FileName, e.builder.CreateImportCommand(request))
}

func (e *Executor) ExportFromGpkg(ctx context.Context, request ExportRequest) Result {
	if !e.env.hasIli2Gpkg() {
		return configFailure("ili2gpkg", request.JobId, request.FileName, fmt.Errorf("ili2gpkg: %w", ErrNotInitialized))
	}

	slog.Info("exporting dataset from GeoPackage", "job_id", request.JobId, "file", request.FileName, "dataset", request.Dataset, "db_file", request.DbFilePath, "profile_id", request.Profile.Id)

	return e.run(ctx, "ili2gpkg", request.JobId, request.FileName, e.builder.CreateExportCommand(request))
}

func (e *Executor) run(ctx context.Context, tool string, jobId uuid.UUID, file string, args []string) Result {
	result := e.runner.Run(ctx, args)
	if result.Err != nil {
		slog.Error("failed to execute ilitool", "tool", tool, "job_id", jobId, "file", file, "error", result.Err)
		return result
	}

	slog.Info("ilitool completed", "tool", tool, "job_id", jobId, "file", file, "exit_code", result.ExitCode)
	return result
}

func configFailure(tool string, jobId uuid.UUID, file string, err error) Result {
	slog.Error("cannot execute ilitool", "tool", tool, "job_id", jobId, "file", file, "error", err)
	return failure(err)
}

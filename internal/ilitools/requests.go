package ilitools

import (
	"errors"

	"ilicop/pkg/api"

	"github.com/google/uuid"
)

var (
	ErrNotInitialized     = errors.New("ilitool is not properly initialized")
	ErrUnsupportedRequest = errors.New("unsupported request")
)

const (
	DatasetData = "Data"
	DatasetLogs = "Logs"
)

type ValidationRequest struct {
	JobId uuid.UUID

	TransferFileName string
	TransferFilePath string

	LogFilePath    string
	XtfLogFilePath string

	// Only used by ilivalidator.
	AdditionalCatalogueFilePaths []string

	// Only used by ili2gpkg, semicolon separated.
	GpkgModelNames string

	IsGeoPackage bool
}

type ImportRequest struct {
	JobId      uuid.UUID
	DbFilePath string
	Dataset    string
	FilePath   string
	FileName   string
	Profile    api.Profile
}

type ExportRequest struct {
	JobId      uuid.UUID
	DbFilePath string
	Dataset    string
	FilePath   string
	FileName   string
	Profile    api.Profile

	// Optional, semicolon separated.
	ExportModels string
}

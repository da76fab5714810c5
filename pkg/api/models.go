package api

import (
	"path/filepath"

	"github.com/google/uuid"
)

// Profile selects the template container, settings and extra files of a job.
type Profile struct {
	Id string
}

// NamedFile pairs a file on disk with the name it gets inside an archive.
type NamedFile struct {
	FilePath    string
	DisplayName string
}

func NewNamedFile(path string) NamedFile {
	return NamedFile{FilePath: path, DisplayName: filepath.Base(path)}
}

const (
	JobCompleted string = "COMPLETED"
	JobInvalid   string = "INVALID"
	JobFailed    string = "FAILED"
)

type JobOutcome struct {
	JobId    uuid.UUID
	Status   string
	ExitCode int

	ContainerPath  string `json:"ContainerPath,omitempty"`
	TranslatedPath string `json:"TranslatedPath,omitempty"`
	ArchivePath    string `json:"ArchivePath,omitempty"`
	ArchiveKey     string `json:"ArchiveKey,omitempty"`

	Artifacts []string

	Error string `json:"Error,omitempty"`
}

func (o JobOutcome) Succeeded() bool {
	return o.Status == JobCompleted
}

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type LogKind string

const (
	LogKindLog     LogKind = ".log"
	LogKindXtf     LogKind = ".xtf"
	LogKindCsv     LogKind = ".csv"
	LogKindGeoJson LogKind = ".geojson"
)

// LogKinds lists the log kinds in the order they are archived.
var LogKinds = []LogKind{LogKindLog, LogKindXtf, LogKindCsv, LogKindGeoJson}

const logFileSuffix = "_log"

// FileProvider gives access to the working directory of a single job.
// Initialize must be called before any other method.
type FileProvider interface {
	Initialize(jobId uuid.UUID) error

	HomeDirectory() string

	CreateFile(name string) (io.WriteCloser, error)

	GetFiles() ([]string, error)

	// SetTransferFileName restricts GetLogFile to the logs generated for the
	// given transfer file, <stem>_log<ext>.
	SetTransferFileName(name string)

	// GetLogFile returns the path of the log of the given kind, or false if
	// the job has not produced one.
	GetLogFile(kind LogKind) (string, bool)
}

type LocalFileProvider struct {
	rootDir string
	homeDir string

	transferStem string
}

var _ FileProvider = (*LocalFileProvider)(nil)

func NewLocalFileProvider(rootDir string) (*LocalFileProvider, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", rootDir, err)
	}
	return &LocalFileProvider{rootDir: abs}, nil
}

func (p *LocalFileProvider) Initialize(jobId uuid.UUID) error {
	home := filepath.Join(p.rootDir, jobId.String())
	if err := os.MkdirAll(home, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create job directory %s: %w", home, err)
	}
	p.homeDir = home
	return nil
}

func (p *LocalFileProvider) HomeDirectory() string {
	return p.homeDir
}

// CreateFile creates or truncates a file in the job directory. Absolute paths
// are accepted as long as they point into the job directory.
func (p *LocalFileProvider) CreateFile(name string) (io.WriteCloser, error) {
	if p.homeDir == "" {
		return nil, fmt.Errorf("file provider is not initialized")
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.homeDir, name)
	}

	rel, err := filepath.Rel(p.homeDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("file %s is outside of job directory %s", name, p.homeDir)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}
	return file, nil
}

func (p *LocalFileProvider) GetFiles() ([]string, error) {
	if p.homeDir == "" {
		return nil, fmt.Errorf("file provider is not initialized")
	}

	entries, err := os.ReadDir(p.homeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list files in %s: %w", p.homeDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

func (p *LocalFileProvider) SetTransferFileName(name string) {
	base := filepath.Base(name)
	p.transferStem = strings.TrimSuffix(base, filepath.Ext(base))
}

// GetLogFile matches <stem>_log<ext> of the transfer file if one was set, and
// any *_log<ext> file otherwise.
func (p *LocalFileProvider) GetLogFile(kind LogKind) (string, bool) {
	files, err := p.GetFiles()
	if err != nil {
		return "", false
	}

	for _, file := range files {
		if p.transferStem != "" {
			if strings.EqualFold(file, p.transferStem+logFileSuffix+string(kind)) {
				return filepath.Join(p.homeDir, file), true
			}
			continue
		}

		if IsLogFile(file, kind) {
			return filepath.Join(p.homeDir, file), true
		}
	}
	return "", false
}

// IsLogFile matches names like "transfer_log.xtf" case-insensitively.
func IsLogFile(name string, kind LogKind) bool {
	ext := filepath.Ext(name)
	if !strings.EqualFold(ext, string(kind)) {
		return false
	}
	stem := strings.ToLower(strings.TrimSuffix(name, ext))
	return strings.HasSuffix(stem, logFileSuffix)
}

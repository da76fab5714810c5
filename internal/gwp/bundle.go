package gwp

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ilicop/internal/storage"
	"ilicop/pkg/api"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Bundler writes job artifacts into a single zip archive. Every entry uses
// the same deflate level.
type Bundler struct {
	level int
}

func NewBundler() *Bundler {
	return &Bundler{level: flate.BestCompression}
}

// CollectFiles lists the artifacts in archive order: logs, additional
// profile files, container, translated transfer file. Absent artifacts are
// left out. Empty paths mean the artifact was not produced.
func (b *Bundler) CollectFiles(files storage.FileProvider, additionalFilesDir, containerPath, containerName, translatedPath string) []api.NamedFile {
	var collected []api.NamedFile

	for _, kind := range storage.LogKinds {
		if path, ok := files.GetLogFile(kind); ok {
			collected = append(collected, api.NamedFile{FilePath: path, DisplayName: "log" + string(kind)})
		}
	}

	collected = append(collected, additionalFiles(additionalFilesDir)...)

	if fileExists(containerPath) {
		collected = append(collected, api.NamedFile{FilePath: containerPath, DisplayName: containerName})
	}

	if fileExists(translatedPath) {
		collected = append(collected, api.NewNamedFile(translatedPath))
	}

	return collected
}

// Bundle writes the archive into the job directory and returns its path.
func (b *Bundler) Bundle(files storage.FileProvider, zipFileName string, entries []api.NamedFile) (string, error) {
	out, err := files.CreateFile(zipFileName)
	if err != nil {
		return "", fmt.Errorf("error creating archive %s: %w", zipFileName, err)
	}

	if err := b.WriteArchive(out, entries); err != nil {
		out.Close()
		return "", err
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("error closing archive %s: %w", zipFileName, err)
	}

	return filepath.Join(files.HomeDirectory(), zipFileName), nil
}

func (b *Bundler) WriteArchive(w io.Writer, entries []api.NamedFile) error {
	archive := zip.NewWriter(w)
	archive.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, b.level)
	})

	for _, entry := range entries {
		if err := addFile(archive, entry); err != nil {
			archive.Close()
			return err
		}
		slog.Debug("added file to archive", "file", entry.DisplayName)
	}

	if err := archive.Close(); err != nil {
		return fmt.Errorf("error finishing archive: %w", err)
	}
	return nil
}

func addFile(archive *zip.Writer, entry api.NamedFile) error {
	src, err := os.Open(entry.FilePath)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", entry.FilePath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("error reading file info of %s: %w", entry.FilePath, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("error creating archive header for %s: %w", entry.FilePath, err)
	}
	header.Name = entry.DisplayName
	header.Method = zip.Deflate

	dst, err := archive.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("error creating archive entry %s: %w", entry.DisplayName, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("error writing archive entry %s: %w", entry.DisplayName, err)
	}
	return nil
}

func additionalFiles(dir string) []api.NamedFile {
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("error listing additional files", "dir", dir, "error", err)
		}
		return nil
	}

	var files []api.NamedFile
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, api.NewNamedFile(filepath.Join(dir, entry.Name())))
	}
	return files
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

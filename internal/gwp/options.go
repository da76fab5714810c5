package gwp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ilicop/internal/config"

	"gopkg.in/yaml.v2"
)

const profileSettingsFileName = "gwp.yaml"

// Options configures GWP processing. ConfigDir is expected to contain one
// folder per profile: {ConfigDir}/{ProfileId}/.
type Options struct {
	ConfigDir string

	// Name of the folder inside a profile directory whose files are added to
	// the archive as they are.
	AdditionalFilesFolderName string

	ZipFileName string

	// Name of the template container inside the profile directory, and of
	// its copy in the job directory.
	DataGpkgFileName string

	// Optional --exportModels value used when translating.
	ExportModels string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ConfigDir:                 cfg.GwpConfigDir,
		AdditionalFilesFolderName: cfg.AdditionalFilesFolder,
		ZipFileName:               cfg.ZipFileName,
		DataGpkgFileName:          cfg.DataGpkgFileName,
	}
}

type profileSettings struct {
	DataGpkgFileName          string `yaml:"dataGpkgFileName"`
	ZipFileName               string `yaml:"zipFileName"`
	AdditionalFilesFolderName string `yaml:"additionalFilesFolderName"`
	ExportModels              string `yaml:"exportModels"`
}

func (o Options) profileDir(profileId string) string {
	return filepath.Join(o.ConfigDir, profileId)
}

// ForProfile applies the overrides of {ConfigDir}/{ProfileId}/gwp.yaml, if
// that file exists.
func (o Options) ForProfile(profileId string) (Options, error) {
	path := filepath.Join(o.profileDir(profileId), profileSettingsFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return o, nil
		}
		return o, fmt.Errorf("error reading profile settings %s: %w", path, err)
	}

	var settings profileSettings
	if err := yaml.UnmarshalStrict(data, &settings); err != nil {
		return o, fmt.Errorf("error parsing profile settings %s: %w", path, err)
	}

	if settings.DataGpkgFileName != "" {
		o.DataGpkgFileName = settings.DataGpkgFileName
	}
	if settings.ZipFileName != "" {
		o.ZipFileName = settings.ZipFileName
	}
	if settings.AdditionalFilesFolderName != "" {
		o.AdditionalFilesFolderName = settings.AdditionalFilesFolderName
	}
	if settings.ExportModels != "" {
		o.ExportModels = settings.ExportModels
	}

	return o, nil
}

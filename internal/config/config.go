package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	JavaExecutable string `env:"ILITOOLS_JAVA" envDefault:"java"`

	IlivalidatorPath       string `env:"ILIVALIDATOR_PATH"`
	IlivalidatorVersion    string `env:"ILIVALIDATOR_VERSION"`
	IlivalidatorConfigPath string `env:"ILIVALIDATOR_CONFIG_PATH"`

	Ili2GpkgPath         string `env:"ILI2GPKG_PATH"`
	Ili2GpkgVersion      string `env:"ILI2GPKG_VERSION"`
	EnableGpkgValidation bool   `env:"ENABLE_GPKG_VALIDATION" envDefault:"false"`

	InstallationDir    string `env:"ILITOOLS_HOME_DIR"`
	CacheDir           string `env:"ILITOOLS_CACHE_DIR"`
	PluginsDir         string `env:"ILITOOLS_PLUGINS_DIR"`
	ModelRepositoryDir string `env:"ILITOOLS_MODELREPOSITORY_DIR"`
	TraceEnabled       bool   `env:"ILITOOLS_TRACE" envDefault:"false"`
	Proxy              string `env:"PROXY"`

	GwpConfigDir          string `env:"GWP_CONFIG_DIR"`
	AdditionalFilesFolder string `env:"GWP_ADDITIONAL_FILES_FOLDER" envDefault:"AdditionalFiles"`
	ZipFileName           string `env:"GWP_ZIP_FILE_NAME" envDefault:"gwp_results_log.zip"`
	DataGpkgFileName      string `env:"GWP_DATA_GPKG_FILE_NAME" envDefault:"data.gpkg"`

	JobsDir string `env:"JOBS_DIR" envDefault:"./jobs"`

	ArchiveBucket       string `env:"ARCHIVE_BUCKET"`
	ArchiveCreateBucket bool   `env:"ARCHIVE_CREATE_BUCKET" envDefault:"false"`
	ArchiveLocalDir     string `env:"ARCHIVE_LOCAL_DIR"`
	S3EndpointURL       string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID       string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region            string `env:"AWS_REGION" envDefault:"us-east-1"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSize    int    `env:"LOG_MAX_SIZE" envDefault:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAge     int    `env:"LOG_MAX_AGE" envDefault:"28"`
}

// LoadConfig reads an optional env file and then parses the process environment.
// An empty envFile means only os.Environ is used.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		log.Printf("loading env from file %s", envFile)
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading env file '%s': %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		log.Println("Warning: S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing.")
	}

	return &cfg, nil
}

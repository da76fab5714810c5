package ilitools

import (
	"fmt"
	"strings"

	"ilicop/internal/config"
)

// Environment holds the resolved ilitools installation. It is built once at
// startup and shared read-only by every component.
type Environment struct {
	JavaExecutable string

	InstallationDir    string
	CacheDir           string
	ModelRepositoryDir string
	PluginsDir         string

	EnableGpkgValidation bool

	IlivalidatorVersion    string
	IlivalidatorPath       string
	IlivalidatorConfigPath string

	Ili2GpkgVersion string
	Ili2GpkgPath    string

	TraceEnabled bool
	Proxy        string
}

func NewEnvironment(cfg *config.Config) *Environment {
	java := cfg.JavaExecutable
	if java == "" {
		java = "java"
	}

	return &Environment{
		JavaExecutable:         java,
		InstallationDir:        cfg.InstallationDir,
		CacheDir:               cfg.CacheDir,
		ModelRepositoryDir:     cfg.ModelRepositoryDir,
		PluginsDir:             cfg.PluginsDir,
		EnableGpkgValidation:   cfg.EnableGpkgValidation,
		IlivalidatorVersion:    cfg.IlivalidatorVersion,
		IlivalidatorPath:       cfg.IlivalidatorPath,
		IlivalidatorConfigPath: cfg.IlivalidatorConfigPath,
		Ili2GpkgVersion:        cfg.Ili2GpkgVersion,
		Ili2GpkgPath:           cfg.Ili2GpkgPath,
		TraceEnabled:           cfg.TraceEnabled,
		Proxy:                  cfg.Proxy,
	}
}

func (e *Environment) IsIlivalidatorInitialized() bool {
	return strings.TrimSpace(e.IlivalidatorPath) != ""
}

// IsIli2GpkgInitialized reports whether GeoPackage validation is usable. It
// needs both the feature flag and the executable path.
func (e *Environment) IsIli2GpkgInitialized() bool {
	return e.EnableGpkgValidation && e.hasIli2Gpkg()
}

// hasIli2Gpkg is enough for import and export, which do not depend on the
// validation feature flag.
func (e *Environment) hasIli2Gpkg() bool {
	return strings.TrimSpace(e.Ili2GpkgPath) != ""
}

func (e *Environment) String() string {
	var b strings.Builder

	line := func(label, value string) {
		fmt.Fprintf(&b, "%-34s%s\n", label+":", value)
	}

	b.WriteString("\n--------------------------------------------------------------------------\n")
	b.WriteString("ilitools environment:\n")
	line("home directory", orUnset(e.InstallationDir))
	line("cache directory", orUnset(e.CacheDir))
	line("model repository directory", orUnset(e.ModelRepositoryDir))
	line("plugins directory", orUnset(e.PluginsDir))
	line("gpkg validation", enabled(e.EnableGpkgValidation))
	line("ilivalidator version", orUnset(e.IlivalidatorVersion))
	line("ilivalidator initialized", yesNo(e.IsIlivalidatorInitialized()))
	line("ili2gpkg version", orUnset(e.Ili2GpkgVersion))
	line("ili2gpkg initialized", yesNo(e.IsIli2GpkgInitialized()))
	line("trace messages enabled", yesNo(e.TraceEnabled))
	b.WriteString("--------------------------------------------------------------------------\n")

	return b.String()
}

func orUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func enabled(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

package ilitools

import (
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// CommandBuilder turns requests into ilitools argument lists. The order of the
// arguments is relied upon by the tools and must not change.
type CommandBuilder struct {
	env *Environment
}

func NewCommandBuilder(env *Environment) *CommandBuilder {
	return &CommandBuilder{env: env}
}

func (b *CommandBuilder) CreateIlivalidatorCommand(request ValidationRequest) []string {
	args := []string{
		"-jar",
		b.env.IlivalidatorPath,
		"--allObjectsAccessible",
	}

	if count := countPlugins(b.env.PluginsDir); count > 0 {
		args = append(args, "--plugins", b.env.PluginsDir)
		slog.Debug("added plugins directory", "plugins_dir", b.env.PluginsDir, "jar_count", count)
	}

	if b.env.IlivalidatorConfigPath != "" {
		args = append(args, "--config", b.env.IlivalidatorConfigPath)
	}

	args = slices.AppendSeq(args, b.CommonArguments(request))

	// Transfer file and catalogues are positional.
	args = append(args, request.TransferFilePath)
	args = append(args, request.AdditionalCatalogueFilePaths...)

	return args
}

func (b *CommandBuilder) CreateIli2GpkgCommand(request ValidationRequest) ([]string, error) {
	if len(request.AdditionalCatalogueFilePaths) > 0 {
		return nil, fmt.Errorf("additional catalogue files are not supported for GPKG validation: %w", ErrUnsupportedRequest)
	}

	args := []string{
		"-jar",
		b.env.Ili2GpkgPath,
		"--validate",
	}

	if request.GpkgModelNames != "" {
		args = append(args, "--models", request.GpkgModelNames)
	}

	args = slices.AppendSeq(args, b.CommonArguments(request))
	args = append(args, "--dbfile", request.TransferFilePath)

	return args, nil
}

func (b *CommandBuilder) CreateImportCommand(request ImportRequest) []string {
	args := []string{
		"-jar",
		b.env.Ili2GpkgPath,
		"--import",
		"--dbfile", request.DbFilePath,
		"--dataset", request.Dataset,
		"--disableValidation",
	}

	args = slices.AppendSeq(args, b.environmentArguments())
	args = append(args, request.FilePath)

	return args
}

func (b *CommandBuilder) CreateExportCommand(request ExportRequest) []string {
	args := []string{
		"-jar",
		b.env.Ili2GpkgPath,
		"--export",
		"--dbfile", request.DbFilePath,
		"--dataset", request.Dataset,
	}

	if request.ExportModels != "" {
		args = append(args, "--exportModels", request.ExportModels)
	}

	args = slices.AppendSeq(args, b.environmentArguments())
	args = append(args, request.FilePath)

	return args
}

// CommonArguments yields the logging options followed by the environment
// options. The sequence is computed on every iteration, so it can be ranged
// over more than once.
func (b *CommandBuilder) CommonArguments(request ValidationRequest) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, arg := range []string{"--log", request.LogFilePath, "--xtflog", request.XtfLogFilePath, "--verbose"} {
			if !yield(arg) {
				return
			}
		}

		for arg := range b.environmentArguments() {
			if !yield(arg) {
				return
			}
		}
	}
}

func (b *CommandBuilder) environmentArguments() iter.Seq[string] {
	return func(yield func(string) bool) {
		var args []string

		if b.env.Proxy != "" {
			args = append(args, proxyArguments(b.env.Proxy)...)
		}

		if b.env.TraceEnabled {
			args = append(args, "--trace")
		}

		if b.env.ModelRepositoryDir != "" {
			args = append(args, "--modeldir", b.env.ModelRepositoryDir)
		}

		for _, arg := range args {
			if !yield(arg) {
				return
			}
		}
	}
}

func proxyArguments(proxy string) []string {
	u, err := url.Parse(proxy)
	if err != nil || u.Hostname() == "" {
		slog.Warn("failed to parse proxy configuration", "proxy", proxy, "error", err)
		return nil
	}

	args := []string{"--proxy", u.Hostname()}

	if port := proxyPort(u); port != "" {
		args = append(args, "--proxyPort", port)
	}

	return args
}

func proxyPort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

func countPlugins(dir string) int {
	if dir == "" {
		return 0
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return 0
	}

	jars, err := filepath.Glob(filepath.Join(dir, "*.jar"))
	if err != nil {
		slog.Warn("error listing plugins", "plugins_dir", dir, "error", err)
		return 0
	}

	return len(jars)
}

// PrettyPrintCommand formats args for log output. Options stay bare and every
// other argument is quoted. The result is not safe to pass to a shell.
func PrettyPrintCommand(args []string) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "" {
			continue
		}
		if strings.HasPrefix(arg, "-") {
			parts = append(parts, arg)
		} else {
			parts = append(parts, `"`+arg+`"`)
		}
	}
	return strings.Join(parts, " ")
}

package gwp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ilicop/internal/ilitools"
	"ilicop/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openContainer(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func closeContainer(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

// createTemplateContainer creates an empty ili2db schema like the one shipped
// as profile template.
func createTemplateContainer(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))

	db := openContainer(t, path)
	require.NoError(t, db.Exec("CREATE TABLE T_ILI2DB_MODEL (filename TEXT, iliversion TEXT, modelName TEXT NOT NULL, content TEXT, importDate TEXT)").Error)
	require.NoError(t, db.Exec("CREATE TABLE T_ILI2DB_BASKET (T_Id INTEGER PRIMARY KEY, dataset INTEGER, topic TEXT NOT NULL, T_Ili_Tid TEXT, attachmentKey TEXT, domains TEXT)").Error)
	closeContainer(t, db)
}

func insertContainerMetadata(t *testing.T, path string, models, topics []string) {
	t.Helper()
	db := openContainer(t, path)
	for _, model := range models {
		require.NoError(t, db.Exec("INSERT INTO T_ILI2DB_MODEL (filename, iliversion, modelName) VALUES (?, ?, ?)", model+".ili", "2.3", model).Error)
	}
	for _, topic := range topics {
		require.NoError(t, db.Exec("INSERT INTO T_ILI2DB_BASKET (dataset, topic, attachmentKey) VALUES (?, ?, ?)", 1, topic, "test.xtf").Error)
	}
	closeContainer(t, db)
}

// fakeIli2Gpkg imitates ili2gpkg: a successful data import registers models
// and topics in the container, an export writes the output file.
type fakeIli2Gpkg struct {
	t      *testing.T
	models []string
	topics []string

	dataResult   ilitools.Result
	logResult    ilitools.Result
	exportResult ilitools.Result

	imports []ilitools.ImportRequest
	exports []ilitools.ExportRequest
}

func (f *fakeIli2Gpkg) ImportToGpkg(ctx context.Context, request ilitools.ImportRequest) ilitools.Result {
	f.imports = append(f.imports, request)

	if request.Dataset == ilitools.DatasetLogs {
		return f.logResult
	}

	if f.dataResult.Succeeded() {
		insertContainerMetadata(f.t, request.DbFilePath, f.models, f.topics)
	}
	return f.dataResult
}

func (f *fakeIli2Gpkg) ExportFromGpkg(ctx context.Context, request ilitools.ExportRequest) ilitools.Result {
	f.exports = append(f.exports, request)
	require.NoError(f.t, os.WriteFile(request.FilePath, []byte("<TRANSFER/>"), 0o644))
	return f.exportResult
}

func newJobFiles(t *testing.T) (*storage.LocalFileProvider, uuid.UUID) {
	t.Helper()
	files, err := storage.NewLocalFileProvider(t.TempDir())
	require.NoError(t, err)
	jobId := uuid.New()
	require.NoError(t, files.Initialize(jobId))
	return files, jobId
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

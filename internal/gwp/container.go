package gwp

import (
	"fmt"
	"os"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	modelTable  = "T_ILI2DB_MODEL"
	modelColumn = "modelName"
	basketTable = "T_ILI2DB_BASKET"
	topicColumn = "topic"
)

type ContainerMetadata struct {
	ModelNames []string
	Topics     []string
}

// ReadContainerMetadata reads the registered models and basket topics of an
// ili2db container. The connection pool is closed before returning, because
// an open pool keeps the file locked.
func ReadContainerMetadata(path string) (ContainerMetadata, error) {
	// The sqlite driver would silently create a missing file.
	if _, err := os.Stat(path); err != nil {
		return ContainerMetadata{}, fmt.Errorf("error opening container %s: %w", path, err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return ContainerMetadata{}, fmt.Errorf("error opening container %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return ContainerMetadata{}, fmt.Errorf("error getting connection pool for %s: %w", path, err)
	}
	defer sqlDB.Close()

	var metadata ContainerMetadata
	if err := db.Table(modelTable).Pluck(modelColumn, &metadata.ModelNames).Error; err != nil {
		return ContainerMetadata{}, fmt.Errorf("error reading %s from %s: %w", modelTable, path, err)
	}

	if err := db.Table(basketTable).Pluck(topicColumn, &metadata.Topics).Error; err != nil {
		return ContainerMetadata{}, fmt.Errorf("error reading %s from %s: %w", basketTable, path, err)
	}

	return metadata, nil
}

// IsTranslationNeeded reports whether the namespace of any topic, which is
// the part before the first '.', is not contained in any model name.
func IsTranslationNeeded(topics, modelNames []string) bool {
	for _, topic := range topics {
		namespace, _, _ := strings.Cut(topic, ".")

		found := false
		for _, model := range modelNames {
			if strings.Contains(model, namespace) {
				found = true
				break
			}
		}

		if !found {
			return true
		}
	}
	return false
}

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultImagesSubDir   = "images"
	DefaultMetadataSubDir = "metadata"
)

const (
	defaultMaxUploadMB        = 100
	defaultBatchConcurrency   = 4
	defaultActivityQueueSize  = 200
	defaultNumActivityWorkers = 2
)

type Config struct {
	// archive root (images and metadata trees live under it)
	ArchivePath string

	// full-calculated storage paths
	ImagesPath   string
	MetadataPath string

	// upload journal database path
	DatabasePath string

	// upload limits
	MaxUploadBytes   int64
	BatchConcurrency int

	// activity worker settings
	ActivityQueueSize  int
	NumActivityWorkers int

	// CORS
	AllowedOrigins []string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	root := getEnvOrDefault("ARCHIVE_PATH", filepath.Join(".", "archive_storage"))
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for archive root '%s': %w", root, err)
	}

	imagesSubDir := getEnvOrDefault("IMAGES_SUBDIR", DefaultImagesSubDir)
	metadataSubDir := getEnvOrDefault("METADATA_SUBDIR", DefaultMetadataSubDir)

	dbPath := getEnvOrDefault("DATABASE_PATH", filepath.Join(absRoot, "uploads.db"))

	maxUploadMB := getEnvIntOrDefault("MAX_UPLOAD_MB", defaultMaxUploadMB)
	batchConcurrency := getEnvIntOrDefault("BATCH_CONCURRENCY", defaultBatchConcurrency)

	queueSize := getEnvIntOrDefault("ACTIVITY_QUEUE_SIZE", defaultActivityQueueSize)
	numWorkers := getEnvIntOrDefault("NUM_ACTIVITY_WORKERS", defaultNumActivityWorkers)

	origins := []string{"*"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = origins[:0]
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	cfg := Config{
		ArchivePath:        absRoot,
		ImagesPath:         filepath.Join(absRoot, imagesSubDir),
		MetadataPath:       filepath.Join(absRoot, metadataSubDir),
		DatabasePath:       dbPath,
		MaxUploadBytes:     int64(maxUploadMB) * 1024 * 1024,
		BatchConcurrency:   batchConcurrency,
		ActivityQueueSize:  queueSize,
		NumActivityWorkers: numWorkers,
		AllowedOrigins:     origins,
	}

	return cfg, nil
}

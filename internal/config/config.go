package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/vbonduro/obrafix/internal/domain"
	"github.com/vbonduro/obrafix/internal/photostore"
)

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

const (
	ReporterLog  = "log"
	ReporterNone = "none"
)

type Config struct {
	Backend string

	// Remote backend credentials. Both are required when Backend is remote.
	DatabaseURL   string
	StorageBucket string

	StoragePublicBaseURL string
	DBPath               string
	PhotoPath            string
	PhotoPublicBaseURL   string
	GalleryPath          string
	ListLimit            int
	ListSort             photostore.SortBy
	ListDesc             bool
	Reporter             string
	LogLevel             string
	LogFile              string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	limit, err := strconv.Atoi(getEnv("LIST_LIMIT", "100"))
	if err != nil {
		return nil, fmt.Errorf("LIST_LIMIT must be a valid integer: %w", err)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("LIST_LIMIT must be greater than 0")
	}

	sortBy, err := photostore.ParseSortBy(getEnv("LIST_SORT", "name"))
	if err != nil {
		return nil, fmt.Errorf("LIST_SORT: %w", err)
	}

	desc, err := strconv.ParseBool(getEnv("LIST_DESC", "false"))
	if err != nil {
		return nil, fmt.Errorf("LIST_DESC must be true or false: %w", err)
	}

	return &Config{
		Backend:              getEnv("OBRAS_BACKEND", BackendRemote),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		StorageBucket:        getEnv("STORAGE_BUCKET", ""),
		StoragePublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		DBPath:               getEnv("DB_PATH", "./data/obras.db"),
		PhotoPath:            getEnv("PHOTO_LOCAL_PATH", "./data/fotos"),
		PhotoPublicBaseURL:   getEnv("PHOTO_PUBLIC_BASE_URL", "https://localhost/fotos"),
		GalleryPath:          getEnv("GALLERY_PATH", "./galeria"),
		ListLimit:            limit,
		ListSort:             sortBy,
		ListDesc:             desc,
		Reporter:             getEnv("REPORTER", ReporterLog),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFile:              getEnv("LOG_FILE", ""),
	}, nil
}

// Validate checks the variables the selected backend cannot run without.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRemote:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required", domain.ErrMissingConfig)
		}
		if c.StorageBucket == "" {
			return fmt.Errorf("%w: STORAGE_BUCKET is required", domain.ErrMissingConfig)
		}
	case BackendLocal:
		if c.DBPath == "" || c.PhotoPath == "" {
			return fmt.Errorf("%w: DB_PATH and PHOTO_LOCAL_PATH are required", domain.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown OBRAS_BACKEND %q", domain.ErrMissingConfig, c.Backend)
	}

	switch c.Reporter {
	case "", ReporterLog, ReporterNone:
	default:
		return fmt.Errorf("%w: unknown REPORTER %q (want %s or %s)", domain.ErrMissingConfig, c.Reporter, ReporterLog, ReporterNone)
	}
	return nil
}

// Listing is how stored photos are listed for reconstruction.
func (c *Config) Listing() photostore.ListOptions {
	return photostore.ListOptions{Limit: c.ListLimit, SortBy: c.ListSort, Desc: c.ListDesc}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

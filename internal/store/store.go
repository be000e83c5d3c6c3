package store

import (
	"fmt"

	config "example.com/jsonblog/internal/init"
	"example.com/jsonblog/internal/logger"
	"example.com/jsonblog/internal/models"
)

var logg = logger.New()

// Repository reads and writes the whole post collection at once.
// Load and Save are not isolated from each other; callers that need
// read-modify-write semantics must serialize around them.
type Repository interface {
	Load() ([]models.Post, error)
	Save(posts []models.Post) error
	Close()
}

// New opens the backend selected by cfg.StoreBackend.
func New(cfg *config.Config) (Repository, error) {
	switch cfg.StoreBackend {
	case "", "file":
		if cfg.SeedDataFile {
			if err := EnsureDataFile(cfg.DataFile); err != nil {
				return nil, err
			}
		}
		return NewFileStore(cfg.DataFile), nil
	case "memory":
		return NewMemory(), nil
	case "cassandra":
		c, err := NewCassandra(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

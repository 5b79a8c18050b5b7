package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/oshokin/catpoint/internal/analyzer"
	"github.com/oshokin/catpoint/internal/config"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	service "github.com/oshokin/catpoint/internal/service/security"
)

// nopCloser is returned for repositories without resources to release.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openRepository creates the repository selected by the storage settings.
func openRepository(ctx context.Context, storage config.StorageConfig) (repo.Repository, io.Closer, error) {
	switch storage.Driver {
	case config.StorageMemory:
		return repo.NewMemoryRepository(), nopCloser{}, nil
	case config.StorageFile:
		repository, err := repo.NewFileRepository(storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open state file: %w", err)
		}

		return repository, nopCloser{}, nil
	case config.StorageSQLite:
		repository, err := repo.OpenSQLiteRepository(ctx, storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}

		return repository, repository, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", storage.Driver)
	}
}

// newAnalyzer creates the image analyzer selected by the analyzer settings.
func newAnalyzer(settings config.AnalyzerConfig) (service.ImageAnalyzer, error) {
	switch settings.Kind {
	case config.AnalyzerFake:
		return analyzer.NewFake(settings.CatProbability, uint64(time.Now().UnixNano())), nil //nolint:gosec // Seed only.
	case config.AnalyzerHTTP:
		opts := []analyzer.HTTPOption{
			analyzer.WithAPIKey(settings.APIKey),
			analyzer.WithTimeout(settings.Timeout),
		}

		if settings.RatePerSecond > 0 {
			opts = append(opts, analyzer.WithRateLimit(settings.RatePerSecond, settings.Burst))
		}

		return analyzer.NewHTTP(settings.Endpoint, opts...)
	default:
		return nil, fmt.Errorf("unsupported analyzer kind %q", settings.Kind)
	}
}

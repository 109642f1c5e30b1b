package sourcing

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// fileLoader reads a JSON catalogue from the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a file-based catalogue loader. Paths ending in .gz
// are decompressed.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "catalog-loader").Logger(),
	}
}

func (l *fileLoader) Load(ctx context.Context, path string) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open catalog file")
		return nil, fmt.Errorf("failed to open catalog file %s: %w", path, err)
	}
	defer file.Close()

	catalog, err := decodeCatalog(file, strings.HasSuffix(path, ".gz"))
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read catalog file")
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	l.logger.Info().Str("file", path).Int("brands", catalog.Size()).Msg("catalog loaded")
	return catalog, nil
}

func decodeCatalog(r io.Reader, gzipped bool) (*Catalog, error) {
	if gzipped {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var brands []BrandSource
	if err := json.NewDecoder(r).Decode(&brands); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	for i, b := range brands {
		if strings.TrimSpace(b.Brand) == "" {
			return nil, fmt.Errorf("brand %d has no name", i)
		}
		if len(b.Primary) == 0 {
			return nil, fmt.Errorf("brand %q has no primary sites", b.Brand)
		}
	}
	return NewCatalog(brands), nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	coreConfig "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// ColumnMappingMetadataKey is the object metadata key holding the JSON column mapping.
const ColumnMappingMetadataKey = "columnmapping"

const fetcherModule = "fetcher"

// SourceFetcher reads import sources through a named storage connection.
type SourceFetcher struct {
	resolver       StorageConnectionResolver
	connectionName string
}

// NewSourceFetcher creates a SourceFetcher reading from the connection named by storage_ref.
func NewSourceFetcher(resolver StorageConnectionResolver, cfg coreConfig.ImportConfig) *SourceFetcher {
	return &SourceFetcher{resolver: resolver, connectionName: cfg.StorageRef}
}

// FetchSource implements port.SourceFetcher.
func (f *SourceFetcher) FetchSource(ctx context.Context, locator model.SourceLocator) (port.Source, error) {
	conn, err := f.resolver.ResolveStorageConnection(ctx, f.connectionName)
	if err != nil {
		return port.Source{}, exception.NewSourceUnavailableError(fetcherModule,
			fmt.Sprintf("storage connection '%s' is not available", f.connectionName), err)
	}

	info, err := conn.Stat(ctx, locator.Bucket, locator.Key)
	if err != nil {
		msg := fmt.Sprintf("failed to stat %s", locator.String())
		if errors.Is(err, ErrObjectNotFound) {
			msg = fmt.Sprintf("source %s not found", locator.String())
		}
		return port.Source{}, exception.NewSourceUnavailableError(fetcherModule, msg, err)
	}

	mapping, err := parseColumnMapping(info.Metadata[ColumnMappingMetadataKey])
	if err != nil {
		return port.Source{}, exception.NewSourceUnavailableError(fetcherModule,
			fmt.Sprintf("invalid column mapping metadata on %s", locator.String()), err)
	}

	rc, err := conn.Download(ctx, locator.Bucket, locator.Key)
	if err != nil {
		return port.Source{}, exception.NewSourceUnavailableError(fetcherModule, fmt.Sprintf("failed to open %s", locator.String()), err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return port.Source{}, exception.NewSourceUnavailableError(fetcherModule, fmt.Sprintf("failed to read %s", locator.String()), err)
	}
	logger.Debugf("SourceFetcher: fetched %s (%d bytes, %d mapped columns).", locator.String(), len(body), len(mapping))

	return port.Source{Body: body, ColumnMapping: mapping, ContentType: info.ContentType}, nil
}

func parseColumnMapping(raw string) (map[string]string, error) {
	mapping := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return mapping, nil
	}
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

var _ port.SourceFetcher = (*SourceFetcher)(nil)

package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/storage"
	"github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// RejectedEmailRecord is one row of a rejects archive.
type RejectedEmailRecord struct {
	ListID       string `parquet:"name=list_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	UserID       string `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Email        string `parquet:"name=email, type=BYTE_ARRAY, convertedtype=UTF8"`
	ImportStatus string `parquet:"name=import_status, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ReportedAt   int64  `parquet:"name=reported_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// ParquetRejectsArchiver is a report sink that stores the corrupted emails of a terminal report
// as a parquet file in blob storage.
type ParquetRejectsArchiver struct {
	resolver storage.StorageConnectionResolver
	cfg      config.ArchiveConfig
}

// NewParquetRejectsArchiver creates the archiver. A disabled archive makes Deliver a no-op.
func NewParquetRejectsArchiver(resolver storage.StorageConnectionResolver, cfg *config.Config) *ParquetRejectsArchiver {
	return &ParquetRejectsArchiver{resolver: resolver, cfg: cfg.Importer.Archive}
}

// ObjectName returns where the archive of report is stored. The name only depends on the report,
// so delivering the same report twice overwrites the same object.
func (a *ParquetRejectsArchiver) ObjectName(report model.ImportStatusReport) string {
	file := fmt.Sprintf("%s_%d.parquet", report.ListID, report.UpdatedAt.UnixMilli())
	return path.Join(a.cfg.OutputBaseDir, report.UserID, file)
}

// Deliver implements port.ReportSink.
func (a *ParquetRejectsArchiver) Deliver(ctx context.Context, report model.ImportStatusReport) error {
	if !a.cfg.Enabled {
		return nil
	}
	if len(report.CorruptedEmails) == 0 {
		logger.Debugf("ParquetRejectsArchiver: list '%s' has no corrupted emails, nothing to archive.", report.ListID)
		return nil
	}

	codec, err := compressionCodec(a.cfg.CompressionType)
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("invalid archive compression '%s'", a.cfg.CompressionType), err, false, false)
	}
	buf, err := encodeRejects(report, codec)
	if err != nil {
		return err
	}

	conn, err := a.resolver.ResolveStorageConnection(ctx, a.cfg.StorageRef)
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve storage connection '%s'", a.cfg.StorageRef), err, false, true)
	}
	objectName := a.ObjectName(report)
	if err := conn.Upload(ctx, a.cfg.Bucket, objectName, buf, "application/octet-stream"); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to upload rejects archive %s", objectName), err, false, true)
	}
	logger.Infof("ParquetRejectsArchiver: archived %d corrupted emails of list '%s' to %s.", len(report.CorruptedEmails), report.ListID, objectName)
	return nil
}

func encodeRejects(report model.ImportStatusReport, codec parquet.CompressionCodec) (buf *bytes.Buffer, err error) {
	buf = new(bytes.Buffer)
	pw, err := parquetwriter.NewParquetWriterFromWriter(buf, new(RejectedEmailRecord), 1)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create parquet writer", err, false, false)
	}
	pw.CompressionType = codec

	var result *multierror.Error
	reportedAt := report.UpdatedAt.UnixMilli()
	for _, email := range report.CorruptedEmails {
		record := RejectedEmailRecord{
			ListID:       report.ListID,
			UserID:       report.UserID,
			Email:        email,
			ImportStatus: string(report.ImportStatus),
			ReportedAt:   reportedAt,
		}
		if err := pw.Write(record); err != nil {
			result = multierror.Append(result, err)
			break
		}
	}

	// WriteStop panics on some malformed schemas instead of returning an error.
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = multierror.Append(result, fmt.Errorf("parquet writer panicked during WriteStop: %v", r))
			}
		}()
		if err := pw.WriteStop(); err != nil {
			result = multierror.Append(result, err)
		}
	}()

	if err := result.ErrorOrNil(); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to encode rejects archive", err, false, false)
	}
	return buf, nil
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

var _ port.ReportSink = (*ParquetRejectsArchiver)(nil)

// Package port defines the capabilities an import execution consumes.
// Implementations live in the adapter, component and infrastructure packages; the engine only sees these interfaces.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

// ErrNoMoreRecords is returned by RecordStream.Next once the stream is exhausted.
var ErrNoMoreRecords = errors.New("no more records to read")

// Source is a fetched source blob.
type Source struct {
	// Body is the raw content of the blob.
	Body []byte
	// ColumnMapping maps source column names to destination attribute names. Never nil.
	ColumnMapping map[string]string
	// ContentType is the content type reported by storage, if any.
	ContentType string
}

// SourceFetcher retrieves a source blob and its column mapping.
type SourceFetcher interface {
	// FetchSource returns the blob for locator. A missing or unreadable blob is an
	// exception.ErrSourceUnavailable error.
	FetchSource(ctx context.Context, locator model.SourceLocator) (Source, error)
}

// RecordStream is a finite, non-restartable sequence of decoded records.
type RecordStream interface {
	// Next returns the next record keyed by header column, or ErrNoMoreRecords.
	Next() (map[string]string, error)
	// Header returns the column names in source order.
	Header() []string
}

// RecordDecoder turns raw bytes into a RecordStream.
type RecordDecoder interface {
	// Format returns the declared format handled by this decoder (e.g. "csv").
	Format() string
	// Decode starts decoding body. Malformed input is an exception.ErrUnsupportedFormat error.
	Decode(body []byte) (RecordStream, error)
}

// BatchWriteResult is the response of one persistence call.
type BatchWriteResult struct {
	// Unwritten lists the entities the store did not accept. Nil means the whole batch was written.
	Unwritten []model.RecipientEntity
}

// BatchWriter is the persistence capability. Implementations receive at most model.MaxChunkSize entities per call.
type BatchWriter interface {
	// PersistBatch writes the entities. A returned error means the call itself failed;
	// partially accepted batches are reported through BatchWriteResult.Unwritten instead.
	PersistBatch(ctx context.Context, entities []model.RecipientEntity) (BatchWriteResult, error)
}

// RemainingTimeSource reports the time left before the current execution's deadline.
type RemainingTimeSource interface {
	RemainingTimeMs() int64
}

// Redispatcher starts a fresh execution of the same lineage from a checkpoint.
type Redispatcher interface {
	Redispatch(ctx context.Context, checkpoint model.Checkpoint) error
}

// ReportSink receives the terminal report of a lineage.
type ReportSink interface {
	Deliver(ctx context.Context, report model.ImportStatusReport) error
}

// ChunkOutcome describes one persistence call made by an execution.
type ChunkOutcome struct {
	// Offset is the lineage offset the chunk started at.
	Offset int
	// Attempted is the number of entities handed to the writer.
	Attempted int
	// Written is the number of entities the writer confirmed.
	Written int
	// Unwritten is Attempted minus Written.
	Unwritten int
}

// ExecutionListener observes one execution of a lineage.
type ExecutionListener interface {
	// BeforeExecution is called after fetch and validation, before the first chunk.
	BeforeExecution(ctx context.Context, job model.ImportJob, total int, valid int)
	// AfterChunk is called after every persistence call that did not fail.
	AfterChunk(ctx context.Context, job model.ImportJob, outcome ChunkOutcome)
	// OnCheckpoint is called after a checkpoint has been dispatched.
	OnCheckpoint(ctx context.Context, job model.ImportJob, checkpoint model.Checkpoint)
	// AfterExecution is called when a terminal report has been built.
	AfterExecution(ctx context.Context, job model.ImportJob, report model.ImportStatusReport)
}

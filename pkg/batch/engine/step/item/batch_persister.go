// Package item holds the engine of an import execution: the batch persister that writes bounded
// chunks and the continuation step that decides between looping, checkpointing and finishing.
package item

import (
	"context"
	"fmt"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// BatchPersister writes valid entities through a BatchWriter, one bounded chunk per call.
// A failing call is never retried here.
type BatchPersister struct {
	writer    port.BatchWriter
	chunkSize int
}

// NewBatchPersister creates a BatchPersister. chunkSize is clamped to 1..model.MaxChunkSize.
func NewBatchPersister(writer port.BatchWriter, chunkSize int) *BatchPersister {
	if chunkSize <= 0 || chunkSize > model.MaxChunkSize {
		logger.Warnf("BatchPersister: chunk size %d out of range, using %d.", chunkSize, model.MaxChunkSize)
		chunkSize = model.MaxChunkSize
	}
	return &BatchPersister{writer: writer, chunkSize: chunkSize}
}

// ChunkSize returns the effective chunk size.
func (p *BatchPersister) ChunkSize() int { return p.chunkSize }

// PersistNext writes the chunk of entities starting at offset.
//
// Written is what the writer confirmed: the attempted count minus the reported unwritten entities.
// Any writer error is returned as an exception.ErrPersistence error.
func (p *BatchPersister) PersistNext(ctx context.Context, entities []model.RecipientEntity, offset int) (port.ChunkOutcome, error) {
	outcome := port.ChunkOutcome{Offset: offset}
	if offset < 0 || offset >= len(entities) {
		return outcome, nil
	}
	end := offset + p.chunkSize
	if end > len(entities) {
		end = len(entities)
	}
	chunk := entities[offset:end]
	outcome.Attempted = len(chunk)

	res, err := p.writer.PersistBatch(ctx, chunk)
	if err != nil {
		return outcome, exception.NewPersistenceError("persister",
			fmt.Sprintf("failed to persist chunk of %d recipients at offset %d: %v", len(chunk), offset, err), err)
	}

	unwritten := len(res.Unwritten)
	if unwritten > outcome.Attempted {
		unwritten = outcome.Attempted
	}
	outcome.Unwritten = unwritten
	outcome.Written = outcome.Attempted - unwritten
	if unwritten > 0 {
		logger.Warnf("BatchPersister: %d of %d recipients at offset %d were not written.", unwritten, outcome.Attempted, offset)
	}
	return outcome, nil
}

// Package writer provides the recipient persistence implementations (gorm upsert and pgx COPY)
// and the parquet archiver for rejected emails.
package writer

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

const moduleName = "writer"

// newThrottle returns nil when writesPerSecond is zero (unlimited).
func newThrottle(writesPerSecond float64) *rate.Limiter {
	if writesPerSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(writesPerSecond))
	if burst < model.MaxChunkSize {
		burst = model.MaxChunkSize
	}
	return rate.NewLimiter(rate.Limit(writesPerSecond), burst)
}

func waitThrottle(ctx context.Context, limiter *rate.Limiter, n int) error {
	if limiter == nil || n == 0 {
		return nil
	}
	return limiter.WaitN(ctx, n)
}

// dedupeByID keeps the last occurrence of every (list_id, id) pair. A single upsert statement
// may not touch the same row twice on postgres.
func dedupeByID(entities []model.RecipientEntity) []model.RecipientEntity {
	seen := make(map[string]int, len(entities))
	out := make([]model.RecipientEntity, 0, len(entities))
	for _, e := range entities {
		key := e.ListID + "\x00" + e.ID
		if i, ok := seen[key]; ok {
			out[i] = e
			continue
		}
		seen[key] = len(out)
		out = append(out, e)
	}
	return out
}

// Package item provides the per-record components of an import: the record normalizer
// and the validation filter that splits normalized candidates into valid and corrupted.
package item

import (
	"sort"
	"strings"
	"time"

	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

// EmailAttribute is the destination attribute name that designates the email column.
const EmailAttribute = "email"

// RecordNormalizer turns one decoded record into a RecipientEntity candidate.
// It holds no per-run state; the same record, mapping and timestamp always produce the same candidate.
type RecordNormalizer struct {
	emailColumn string
}

// NewRecordNormalizer creates a RecordNormalizer using the configured fallback email column.
func NewRecordNormalizer(cfg config.ImportConfig) *RecordNormalizer {
	col := strings.TrimSpace(cfg.EmailColumn)
	if col == "" {
		col = EmailAttribute
	}
	return &RecordNormalizer{emailColumn: col}
}

// Normalize builds the candidate for raw. createdAt is supplied by the caller so that repeated
// normalization of the same record is deterministic.
//
// A record without an email column yields an empty email; the validation filter reports it as corrupted.
func (n *RecordNormalizer) Normalize(job model.ImportJob, raw map[string]string, createdAt time.Time) model.RecipientEntity {
	emailKey := n.EmailColumn(job.ColumnMapping, raw)

	email := ""
	if emailKey != "" {
		email = strings.TrimSpace(raw[emailKey])
	}

	// Unmapped columns are written first so a mapped destination always wins a name clash.
	// Mapped columns go in sorted source order; the last source mapped to a destination wins.
	metadata := make(map[string]string, len(raw))
	var mapped []string
	for col, value := range raw {
		if col == emailKey {
			continue
		}
		if dest, ok := job.ColumnMapping[col]; ok && dest != "" {
			mapped = append(mapped, col)
			continue
		}
		metadata[col] = value
	}
	sort.Strings(mapped)
	for _, col := range mapped {
		metadata[job.ColumnMapping[col]] = raw[col]
	}

	return model.RecipientEntity{
		ID:          model.NewRecipientID(email),
		ListID:      job.ListID,
		UserID:      job.UserID,
		Email:       email,
		Metadata:    metadata,
		Status:      model.RecipientStatusActive,
		IsConfirmed: false,
		CreatedAt:   createdAt,
	}
}

// EmailColumn returns the key of raw that holds the email address, or "" when there is none.
// A column mapped to "email" wins over the configured fallback column.
func (n *RecordNormalizer) EmailColumn(mapping map[string]string, raw map[string]string) string {
	var mapped []string
	for src, dest := range mapping {
		if strings.EqualFold(strings.TrimSpace(dest), EmailAttribute) {
			if _, ok := raw[src]; ok {
				mapped = append(mapped, src)
			}
		}
	}
	if len(mapped) > 0 {
		sort.Strings(mapped)
		return mapped[0]
	}

	if _, ok := raw[n.emailColumn]; ok {
		return n.emailColumn
	}
	var folded []string
	for col := range raw {
		if strings.EqualFold(strings.TrimSpace(col), n.emailColumn) {
			folded = append(folded, col)
		}
	}
	if len(folded) == 0 {
		return ""
	}
	sort.Strings(folded)
	return folded[0]
}

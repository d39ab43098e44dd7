package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

// ErrStatusReportNotFound is returned when no report exists for a list.
var ErrStatusReportNotFound = errors.New("status report not found")

// StatusReportRepository persists terminal import reports, one row per list.
type StatusReportRepository interface {
	// SaveStatusReport inserts the report or replaces the previous report of the same list.
	SaveStatusReport(ctx context.Context, report model.ImportStatusReport) error

	// FindStatusReportByListID returns the latest report of a list or ErrStatusReportNotFound.
	FindStatusReportByListID(ctx context.Context, listID string) (*model.ImportStatusReport, error)
}

// RecipientRepository reads back persisted recipients.
type RecipientRepository interface {
	// CountRecipients returns the number of recipients stored for a list.
	CountRecipients(ctx context.Context, listID string) (int64, error)
}

package usecase

import (
	"context"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/recipient-import/pkg/batch/core/domain/repository"
)

// SimpleImportExplorer reads reports and recipient counts from the repositories.
type SimpleImportExplorer struct {
	statuses   repository.StatusReportRepository
	recipients repository.RecipientRepository
}

func NewSimpleImportExplorer(statuses repository.StatusReportRepository, recipients repository.RecipientRepository) *SimpleImportExplorer {
	return &SimpleImportExplorer{statuses: statuses, recipients: recipients}
}

func (e *SimpleImportExplorer) GetStatusReport(ctx context.Context, listID string) (*model.ImportStatusReport, error) {
	return e.statuses.FindStatusReportByListID(ctx, listID)
}

func (e *SimpleImportExplorer) CountRecipients(ctx context.Context, listID string) (int64, error) {
	return e.recipients.CountRecipients(ctx, listID)
}

var _ ImportExplorer = (*SimpleImportExplorer)(nil)

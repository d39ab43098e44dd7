package sql

import (
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

func fromDomainStatusReport(r model.ImportStatusReport) *StatusReportEntity {
	corrupted := r.CorruptedEmails
	if corrupted == nil {
		corrupted = []string{}
	}
	return &StatusReportEntity{
		ListID:               r.ListID,
		UserID:               r.UserID,
		TotalRecipientsCount: r.TotalRecipientsCount,
		ImportedCount:        r.ImportedCount,
		CorruptedEmailsCount: r.CorruptedEmailsCount,
		CorruptedEmails:      corrupted,
		ImportStatus:         string(r.ImportStatus),
		UpdatedAt:            r.UpdatedAt,
		Message:              r.Message,
		Trace:                r.Trace,
	}
}

func toDomainStatusReport(e *StatusReportEntity) *model.ImportStatusReport {
	if e == nil {
		return nil
	}
	corrupted := e.CorruptedEmails
	if corrupted == nil {
		corrupted = []string{}
	}
	return &model.ImportStatusReport{
		ListID:               e.ListID,
		UserID:               e.UserID,
		TotalRecipientsCount: e.TotalRecipientsCount,
		ImportedCount:        e.ImportedCount,
		CorruptedEmailsCount: e.CorruptedEmailsCount,
		CorruptedEmails:      corrupted,
		ImportStatus:         model.ImportStatus(e.ImportStatus),
		UpdatedAt:            e.UpdatedAt,
		Message:              e.Message,
		Trace:                e.Trace,
	}
}

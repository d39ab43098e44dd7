package model

import "time"

// ImportStatus is the terminal status of a lineage.
type ImportStatus string

const (
	ImportStatusSuccess ImportStatus = "SUCCESS"
	ImportStatusFailed  ImportStatus = "FAILED"
)

// ImportStatusReport is produced exactly once per lineage, when it reaches a terminal state.
type ImportStatusReport struct {
	ListID               string       `json:"listId"`
	UserID               string       `json:"userId"`
	TotalRecipientsCount int          `json:"totalRecipientsCount"`
	ImportedCount        int          `json:"importedCount"`
	CorruptedEmailsCount int          `json:"corruptedEmailsCount"`
	CorruptedEmails      []string     `json:"corruptedEmails"`
	ImportStatus         ImportStatus `json:"importStatus"`
	UpdatedAt            time.Time    `json:"updatedAt"`
	Message              string       `json:"message,omitempty"`
	Trace                string       `json:"trace,omitempty"`
}

// Succeeded reports whether the lineage completed successfully.
func (r ImportStatusReport) Succeeded() bool {
	return r.ImportStatus == ImportStatusSuccess
}

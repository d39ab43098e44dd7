package sql

import "time"

// StatusReportEntity is the import_status row.
type StatusReportEntity struct {
	ListID               string    `gorm:"column:list_id;primaryKey;size:128"`
	UserID               string    `gorm:"column:user_id;size:128"`
	TotalRecipientsCount int       `gorm:"column:total_recipients_count"`
	ImportedCount        int       `gorm:"column:imported_count"`
	CorruptedEmailsCount int       `gorm:"column:corrupted_emails_count"`
	CorruptedEmails      []string  `gorm:"column:corrupted_emails;serializer:json"`
	ImportStatus         string    `gorm:"column:import_status;size:16"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
	Message              string    `gorm:"column:message"`
	Trace                string    `gorm:"column:trace"`
}

// TableName sets the table name for gorm.
func (StatusReportEntity) TableName() string {
	return "import_status"
}

// statusReportUpdateColumns are replaced when a list is reported again.
var statusReportUpdateColumns = []string{
	"user_id",
	"total_recipients_count",
	"imported_count",
	"corrupted_emails_count",
	"corrupted_emails",
	"import_status",
	"updated_at",
	"message",
	"trace",
}

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecipientStatus enumerates the states a recipient can be in.
type RecipientStatus string

const (
	RecipientStatusActive       RecipientStatus = "active"
	RecipientStatusUnsubscribed RecipientStatus = "unsubscribed"
	RecipientStatusBounced      RecipientStatus = "bounced"
)

// recipientNamespace scopes recipient ids so they never collide with other SHA-1 UUIDs.
var recipientNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:recipient-import:recipient"))

// NewRecipientID derives a stable, non-reversible id from an email address.
// The address is trimmed and lower-cased first, so re-importing a row yields the same id.
func NewRecipientID(email string) string {
	return uuid.NewSHA1(recipientNamespace, []byte(strings.ToLower(strings.TrimSpace(email)))).String()
}

// RecipientEntity is one importable recipient. Values are built by the normalizer and never mutated.
type RecipientEntity struct {
	ID          string            `json:"id" gorm:"column:id;primaryKey;size:36"`
	ListID      string            `json:"listId" gorm:"column:list_id;primaryKey;size:128"`
	UserID      string            `json:"userId" gorm:"column:user_id;size:128;index"`
	Email       string            `json:"email" gorm:"column:email;size:320"`
	Metadata    map[string]string `json:"metadata" gorm:"column:metadata;serializer:json"`
	Status      RecipientStatus   `json:"status" gorm:"column:status;size:32"`
	IsConfirmed bool              `json:"isConfirmed" gorm:"column:is_confirmed"`
	CreatedAt   time.Time         `json:"createdAt" gorm:"column:created_at"`
}

// TableName sets the table name for gorm.
func (RecipientEntity) TableName() string {
	return "recipients"
}

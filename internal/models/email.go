package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/clientflow/mailsync/internal/enum"
	"github.com/clientflow/mailsync/internal/utils"
)

// Email is one synced message as cached locally. Identity across sync runs
// is the composite (account_id, folder, uid); re-fetching the same message
// overwrites this row instead of creating a new one.
type Email struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_emails_account_folder_uid;not null"`
	Folder    string `gorm:"column:folder;type:varchar(100);uniqueIndex:idx_emails_account_folder_uid;not null"`
	UID       uint32 `gorm:"column:uid;uniqueIndex:idx_emails_account_folder_uid;not null"`

	// Core email metadata
	Subject      string `gorm:"column:subject;type:varchar(1000)"`
	CleanSubject string `gorm:"column:clean_subject;type:varchar(1000)"`
	FromAddress  string `gorm:"column:from_address;type:varchar(255);index"`
	FromName     string `gorm:"column:from_name;type:varchar(255)"`

	// Flags
	Flags      pq.StringArray `gorm:"column:flags;type:text[]"`
	IsRead     bool           `gorm:"column:is_read;default:false"`
	IsStarred  bool           `gorm:"column:is_starred;default:false"`
	IsAnswered bool           `gorm:"column:is_answered;default:false"`
	IsDraft    bool           `gorm:"column:is_draft;default:false"`
	IsDeleted  bool           `gorm:"column:is_deleted;default:false"`

	Direction enum.EmailDirection `gorm:"column:direction;type:varchar(50);index"`

	// Time information
	ReceivedAt *time.Time `gorm:"column:received_at;type:timestamp;index"`

	// Content
	BodyText string `gorm:"column:body_text;type:text"`

	// Standard timestamps
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}

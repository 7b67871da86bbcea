package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/clientflow/mailsync/internal/enum"
	"github.com/clientflow/mailsync/internal/utils"
)

// MailAccount holds the IMAP connection settings for one mailbox. The
// password column carries the encrypted credential; decryption happens in
// the caller before a sync run is started.
type MailAccount struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	ImapServer   string `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort     int    `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapUsername string `gorm:"column:imap_username;type:varchar(255);not null" json:"imapUsername"`
	ImapPassword string `gorm:"column:imap_password;type:varchar(255);not null" json:"-"`
	ImapTLS      bool   `gorm:"column:imap_tls;not null;default:true" json:"imapTls"`
	// Status Information
	LastSyncedAt *time.Time      `gorm:"column:last_synced_at;type:timestamp" json:"lastSyncedAt"`
	SyncStatus   enum.SyncStatus `gorm:"column:sync_status;type:varchar(50)" json:"syncStatus"`
	ErrorMessage string          `gorm:"column:error_message;type:text" json:"errorMessage"`
	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (MailAccount) TableName() string {
	return "mail_accounts"
}

func (a *MailAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acc", 16)
	}
	return nil
}

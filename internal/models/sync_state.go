package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/clientflow/mailsync/internal/utils"
)

// FolderSyncState is the per-folder high-water-mark: the last UID fully
// synced and the message count observed when that sync finished.
type FolderSyncState struct {
	ID         string    `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID  string    `gorm:"column:account_id;type:varchar(50);index;not null"`
	FolderName string    `gorm:"column:folder_name;type:varchar(100);index;not null"`
	LastUID    uint32    `gorm:"column:last_uid;not null"`
	LastExists uint32    `gorm:"column:last_exists;not null;default:0"`
	LastSync   time.Time `gorm:"column:last_sync;type:timestamp;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (FolderSyncState) TableName() string {
	return "folder_sync_states"
}

func (s *FolderSyncState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("fss", 16)
	}
	return nil
}

package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/clientflow/mailsync/config"
	"github.com/clientflow/mailsync/interfaces"
	"github.com/clientflow/mailsync/internal/models"
)

type Repositories struct {
	EmailRepository           interfaces.EmailRepository
	MailAccountRepository     interfaces.MailAccountRepository
	FolderSyncStateRepository interfaces.FolderSyncStateRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		EmailRepository:           NewEmailRepository(db),
		MailAccountRepository:     NewMailAccountRepository(db),
		FolderSyncStateRepository: NewFolderSyncStateRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Email{},
		&models.MailAccount{},
		&models.FolderSyncState{},
	)

	sqlDB.Close()

	sqlDB, _ = db.DB()
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}

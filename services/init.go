package services

import (
	"github.com/clientflow/mailsync/config"
	"github.com/clientflow/mailsync/interfaces"
	"github.com/clientflow/mailsync/internal/logger"
	"github.com/clientflow/mailsync/internal/repository"
	"github.com/clientflow/mailsync/services/events"
	"github.com/clientflow/mailsync/services/imapsync"
)

type Services struct {
	EventPublisher interfaces.EventPublisher
	SyncService    interfaces.SyncService
	Decryptor      interfaces.CredentialDecryptor
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		rabbitPublisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log)
		if err != nil {
			return nil, err
		}
		publisher = rabbitPublisher
	}

	services := Services{
		EventPublisher: publisher,
		SyncService:    imapsync.NewSyncService(cfg.SyncConfig, log, repos, publisher),
		Decryptor:      PlaintextCredentials{},
	}

	return &services, nil
}

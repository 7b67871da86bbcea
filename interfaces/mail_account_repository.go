package interfaces

import (
	"context"

	"github.com/clientflow/mailsync/internal/enum"
	"github.com/clientflow/mailsync/internal/models"
)

type MailAccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.MailAccount, error)
	List(ctx context.Context) ([]*models.MailAccount, error)
	Save(ctx context.Context, account *models.MailAccount) error
	UpdateSyncStatus(ctx context.Context, id string, status enum.SyncStatus, errorMessage string) error
	MarkSynced(ctx context.Context, id string) error
}

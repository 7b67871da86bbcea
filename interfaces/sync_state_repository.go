package interfaces

import (
	"context"

	"github.com/clientflow/mailsync/internal/models"
)

type FolderSyncStateRepository interface {
	GetSyncState(ctx context.Context, accountID, folderName string) (*models.FolderSyncState, error)
	GetAccountSyncStates(ctx context.Context, accountID string) (map[string]*models.FolderSyncState, error)
	SaveSyncState(ctx context.Context, state *models.FolderSyncState) error
	DeleteSyncState(ctx context.Context, accountID, folderName string) error
	DeleteAccountSyncStates(ctx context.Context, accountID string) error
}

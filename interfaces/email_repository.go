package interfaces

import (
	"context"

	"github.com/clientflow/mailsync/internal/models"
)

type EmailRepository interface {
	// Upsert writes the record keyed by (account_id, folder, uid),
	// overwriting any existing row for the same key
	Upsert(ctx context.Context, email *models.Email) error
	GetByUID(ctx context.Context, accountID, folder string, uid uint32) (*models.Email, error)
	ListByFolder(ctx context.Context, accountID, folder string, limit, offset int) ([]*models.Email, int64, error)
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientflow/mailsync/internal/enum"
	"github.com/clientflow/mailsync/internal/models"
)

func sampleAccount() *models.MailAccount {
	return &models.MailAccount{
		ImapServer:   "imap.example.com",
		ImapPort:     993,
		ImapUsername: "user@example.com",
		ImapPassword: "encrypted-blob",
		ImapTLS:      true,
	}
}

func TestMailAccountRepository_SaveAndGetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMailAccountRepository(db)
	ctx := context.Background()

	account := sampleAccount()
	require.NoError(t, repo.Save(ctx, account))
	require.NotEmpty(t, account.ID)

	stored, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "imap.example.com", stored.ImapServer)
	assert.Equal(t, 993, stored.ImapPort)
}

func TestMailAccountRepository_GetByIDMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMailAccountRepository(db)

	stored, err := repo.GetByID(context.Background(), "acc_missing")

	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestMailAccountRepository_SyncStatusRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMailAccountRepository(db)
	ctx := context.Background()

	account := sampleAccount()
	require.NoError(t, repo.Save(ctx, account))

	require.NoError(t, repo.UpdateSyncStatus(ctx, account.ID, enum.SyncStatusFailed, "connection refused"))

	stored, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncStatusFailed, stored.SyncStatus)
	assert.Equal(t, "connection refused", stored.ErrorMessage)

	require.NoError(t, repo.MarkSynced(ctx, account.ID))

	stored, err = repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.SyncStatusOK, stored.SyncStatus)
	assert.Empty(t, stored.ErrorMessage)
	assert.NotNil(t, stored.LastSyncedAt)
}

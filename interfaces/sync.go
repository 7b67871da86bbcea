package interfaces

import (
	"context"
	"time"

	"github.com/clientflow/mailsync/internal/enum"
	"github.com/clientflow/mailsync/internal/models"
)

// SyncService runs one synchronous mailbox sync per call. Concurrent runs
// for different accounts are safe; each run owns its own connection.
type SyncService interface {
	RunSync(ctx context.Context, account *models.MailAccount, mode enum.SyncMode) *SyncRunSummary
}

// SyncRunSummary is the sole result surface of a sync run. Per-message and
// per-batch problems show up as counters; Error is set only when the run
// failed before any folder could be processed.
type SyncRunSummary struct {
	AccountID         string    `json:"accountId"`
	Mode              string    `json:"mode"`
	FoldersSeen       int       `json:"foldersSeen"`
	FoldersFailed     int       `json:"foldersFailed"`
	MessagesFetched   int       `json:"messagesFetched"`
	MessagesPersisted int       `json:"messagesPersisted"`
	Failures          int       `json:"failures"`
	NewHighWaterMark  time.Time `json:"newHighWaterMark"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
	Error             error     `json:"-"`
}

// CredentialDecryptor is the collaborator that turns the stored credential
// into the plaintext password the engine needs. The engine itself never
// decrypts; the caller resolves the password before invoking RunSync.
type CredentialDecryptor interface {
	Decrypt(ciphertext string) (string, error)
}

package imapsync

import (
	"context"
	"sort"

	"github.com/opentracing/opentracing-go"

	"github.com/clientflow/mailsync/config"
	"github.com/clientflow/mailsync/dto"
	"github.com/clientflow/mailsync/interfaces"
	"github.com/clientflow/mailsync/internal/enum"
	"github.com/clientflow/mailsync/internal/imapwire"
	"github.com/clientflow/mailsync/internal/logger"
	"github.com/clientflow/mailsync/internal/models"
	"github.com/clientflow/mailsync/internal/repository"
	"github.com/clientflow/mailsync/internal/tracing"
	"github.com/clientflow/mailsync/internal/utils"
)

const (
	RoutingKeyEmailReceived = "mailsync-email-received"
	RoutingKeySyncCompleted = "mailsync-sync-completed"
)

// SyncService drives one mailbox sync per RunSync call: one connection,
// folders strictly sequential, one tagged command in flight at a time.
// Concurrency happens across accounts, never inside a run.
type SyncService struct {
	cfg          *config.SyncConfig
	log          logger.Logger
	repositories *repository.Repositories
	publisher    interfaces.EventPublisher
}

func NewSyncService(cfg *config.SyncConfig, log logger.Logger, repos *repository.Repositories, publisher interfaces.EventPublisher) interfaces.SyncService {
	return &SyncService{
		cfg:          cfg,
		log:          log,
		repositories: repos,
		publisher:    publisher,
	}
}

// RunSync is the single entry point of the engine. Connect and login
// failures abort the run; everything after that degrades per folder,
// batch, or message and shows up in the summary counters instead.
func (s *SyncService) RunSync(ctx context.Context, account *models.MailAccount, mode enum.SyncMode) *interfaces.SyncRunSummary {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.RunSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	span.SetTag("mode", mode.String())

	summary := &interfaces.SyncRunSummary{
		AccountID: account.ID,
		Mode:      mode.String(),
		StartedAt: utils.Now(),
	}

	conn, err := imapwire.Dial(account.ImapServer, account.ImapPort, account.ImapTLS)
	if err != nil {
		return s.fatal(ctx, span, summary, err)
	}
	conn.SetMaxResponseBytes(s.cfg.MaxResponseBytes)
	client := imapwire.NewClient(conn)

	// Logout on every exit path; the connection is force-closed whatever
	// the logout outcome was.
	defer func() {
		if err := client.Logout(s.cfg.LogoutTimeout()); err != nil {
			s.log.Warnf("[%s] Logout failed: %v", account.ID, err)
		}
		client.Close()
		summary.FinishedAt = utils.Now()
	}()

	if _, err := client.ReadGreeting(s.cfg.ControlTimeout()); err != nil {
		return s.fatal(ctx, span, summary, err)
	}

	if err := client.Login(account.ImapUsername, account.ImapPassword, s.cfg.ControlTimeout()); err != nil {
		return s.fatal(ctx, span, summary, err)
	}

	rawList, err := client.ListFolders(s.cfg.ControlTimeout())
	if err != nil {
		return s.fatal(ctx, span, summary, err)
	}
	folders := imapwire.ParseListFolders(rawList)
	sort.Strings(folders)
	span.LogKV("folders.count", len(folders))
	s.log.Infof("[%s] Found %d folders", account.ID, len(folders))

	var priorStates map[string]*models.FolderSyncState
	if mode == enum.SyncModeIncremental {
		priorStates, err = s.repositories.FolderSyncStateRepository.GetAccountSyncStates(ctx, account.ID)
		if err != nil {
			// fall back to full ranges rather than failing the run
			s.log.Warnf("[%s] Could not load sync states: %v", account.ID, err)
			priorStates = nil
		}
	}

	newStates := make([]*models.FolderSyncState, 0, len(folders))
	for _, folderName := range folders {
		summary.FoldersSeen++
		result := s.syncFolder(ctx, client, account, folderName, mode, priorStates[folderName], summary)
		if result.failed {
			summary.FoldersFailed++
			continue
		}
		if result.state != nil {
			newStates = append(newStates, result.state)
		}
	}

	// The high-water-mark advances only after all folders were attempted.
	for _, state := range newStates {
		if err := s.repositories.FolderSyncStateRepository.SaveSyncState(ctx, state); err != nil {
			s.log.Errorf("[%s][%s] Error saving sync state: %v", account.ID, state.FolderName, err)
		}
	}
	if err := s.repositories.MailAccountRepository.MarkSynced(ctx, account.ID); err != nil {
		s.log.Errorf("[%s] Error marking account synced: %v", account.ID, err)
	}
	summary.NewHighWaterMark = utils.Now()

	s.publishSyncCompleted(ctx, summary)

	s.log.Infof("[%s] Sync complete: %d folders, %d fetched, %d persisted, %d failures",
		account.ID, summary.FoldersSeen, summary.MessagesFetched, summary.MessagesPersisted, summary.Failures)

	return summary
}

// fatal finalizes a run that never reached folder processing.
func (s *SyncService) fatal(ctx context.Context, span opentracing.Span, summary *interfaces.SyncRunSummary, err error) *interfaces.SyncRunSummary {
	tracing.TraceErr(span, err)
	s.log.Errorf("[%s] Sync aborted: %v", summary.AccountID, err)
	summary.Error = err
	summary.FinishedAt = utils.Now()

	if repoErr := s.repositories.MailAccountRepository.UpdateSyncStatus(ctx, summary.AccountID, enum.SyncStatusFailed, err.Error()); repoErr != nil {
		s.log.Errorf("[%s] Error recording sync failure: %v", summary.AccountID, repoErr)
	}

	return summary
}

func (s *SyncService) publishEmailReceived(ctx context.Context, accountID, folder string, uid uint32, mode enum.SyncMode) {
	if s.publisher == nil {
		return
	}
	event := dto.EmailReceived{
		AccountID:   accountID,
		Folder:      folder,
		ImapUID:     uid,
		InitialSync: mode == enum.SyncModeFull,
	}
	if err := s.publisher.PublishEvent(ctx, RoutingKeyEmailReceived, event); err != nil {
		s.log.Warnf("[%s][%s] Error publishing email received event: %v", accountID, folder, err)
	}
}

func (s *SyncService) publishSyncCompleted(ctx context.Context, summary *interfaces.SyncRunSummary) {
	if s.publisher == nil {
		return
	}
	event := dto.SyncCompleted{
		AccountID:         summary.AccountID,
		Mode:              summary.Mode,
		FoldersSeen:       summary.FoldersSeen,
		MessagesPersisted: summary.MessagesPersisted,
		Failures:          summary.Failures,
		FinishedAt:        utils.Now(),
	}
	if err := s.publisher.PublishEvent(ctx, RoutingKeySyncCompleted, event); err != nil {
		s.log.Warnf("[%s] Error publishing sync completed event: %v", summary.AccountID, err)
	}
}

package imapsync

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/clientflow/mailsync/interfaces"
	"github.com/clientflow/mailsync/internal/enum"
	"github.com/clientflow/mailsync/internal/imapwire"
	"github.com/clientflow/mailsync/internal/models"
	"github.com/clientflow/mailsync/internal/tracing"
)

const defaultBatchSize = 50

type folderResult struct {
	failed bool
	state  *models.FolderSyncState
}

// syncFolder runs the per-folder state machine: select, determine the
// fetch range, then work through it in fixed-size batches. A failed batch
// counts its messages as failures and the loop moves on; partial folder
// sync beats none.
func (s *SyncService) syncFolder(
	ctx context.Context,
	client *imapwire.Client,
	account *models.MailAccount,
	folderName string,
	mode enum.SyncMode,
	prior *models.FolderSyncState,
	summary *interfaces.SyncRunSummary,
) folderResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.syncFolder")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	tracing.TagFolder(span, folderName)

	rawSelect, err := client.Select(folderName, s.cfg.ControlTimeout())
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("[%s][%s] Error selecting folder: %v", account.ID, folderName, err)
		return folderResult{failed: true}
	}

	sel := imapwire.ParseSelect(rawSelect)
	span.SetTag("messages.total", sel.Exists)
	span.SetTag("messages.recent", sel.Recent)
	s.log.Infof("[%s][%s] Selected folder - Messages: %d, Recent: %d",
		account.ID, folderName, sel.Exists, sel.Recent)

	priorUID := uint32(0)
	if prior != nil {
		priorUID = prior.LastUID
	}

	if sel.Exists == 0 {
		return folderResult{state: s.newSyncState(account.ID, folderName, priorUID, 0)}
	}

	start := uint32(1)
	if mode == enum.SyncModeIncremental && prior != nil && prior.LastUID > 0 {
		if sel.Exists <= prior.LastExists {
			s.log.Infof("[%s][%s] No new messages since last sync", account.ID, folderName)
			return folderResult{state: s.newSyncState(account.ID, folderName, prior.LastUID, sel.Exists)}
		}
		// only the trailing sequence numbers can be new
		start = prior.LastExists + 1
		s.log.Infof("[%s][%s] Resuming sync from message %d of %d", account.ID, folderName, start, sel.Exists)
	}

	batchSize := uint32(s.cfg.BatchSize)
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}

	highestUID := priorUID
	for from := start; from <= sel.Exists; from += batchSize {
		to := from + batchSize - 1
		if to > sel.Exists {
			to = sel.Exists
		}

		if ctx.Err() != nil {
			summary.Failures += int(sel.Exists - from + 1)
			s.log.Warnf("[%s][%s] Sync cancelled, skipping messages %d-%d", account.ID, folderName, from, sel.Exists)
			break
		}

		raw, err := client.FetchSeqRange(from, to, s.cfg.FetchTimeout())
		if err != nil {
			tracing.TraceErr(span, err)
			summary.Failures += int(to - from + 1)
			s.log.Warnf("[%s][%s] Error fetching batch %d-%d: %v", account.ID, folderName, from, to, err)
			continue
		}

		if uid := s.processBatch(ctx, account, folderName, raw, mode, summary); uid > highestUID {
			highestUID = uid
		}
	}

	return folderResult{state: s.newSyncState(account.ID, folderName, highestUID, sel.Exists)}
}

// processBatch parses and persists one FETCH response. Per-message
// problems are counted and skipped; the batch keeps going.
func (s *SyncService) processBatch(
	ctx context.Context,
	account *models.MailAccount,
	folderName string,
	raw string,
	mode enum.SyncMode,
	summary *interfaces.SyncRunSummary,
) uint32 {
	var highestUID uint32

	for _, block := range imapwire.SplitFetchBlocks(raw) {
		msg, err := imapwire.ParseFetchBlock(block)
		if err != nil {
			summary.Failures++
			s.log.Warnf("[%s][%s] Dropping unparsable fetch block: %v", account.ID, folderName, err)
			continue
		}
		summary.MessagesFetched++

		email := s.buildEmail(account, folderName, msg)
		if err := s.repositories.EmailRepository.Upsert(ctx, email); err != nil {
			summary.Failures++
			s.log.Warnf("[%s][%s] Error persisting message uid %d: %v", account.ID, folderName, msg.UID, err)
			continue
		}
		summary.MessagesPersisted++

		if msg.UID > highestUID {
			highestUID = msg.UID
		}

		s.publishEmailReceived(ctx, account.ID, folderName, msg.UID, mode)
	}

	return highestUID
}

func (s *SyncService) newSyncState(accountID, folderName string, lastUID, lastExists uint32) *models.FolderSyncState {
	return &models.FolderSyncState{
		AccountID:  accountID,
		FolderName: folderName,
		LastUID:    lastUID,
		LastExists: lastExists,
	}
}

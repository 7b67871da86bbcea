package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clientflow/mailsync/internal/enum"
	appErrors "github.com/clientflow/mailsync/internal/errors"
	"github.com/clientflow/mailsync/internal/repository"
	"github.com/clientflow/mailsync/internal/tracing"
	"github.com/clientflow/mailsync/services"
)

// TriggerSync runs a synchronization pass for a single account and
// returns the run summary. Mode defaults to incremental unless
// ?mode=full is passed.
func TriggerSync(s *services.Services, repos *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "TriggerSync", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("accountID")
		if accountID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing account id"})
			return
		}
		tracing.TagAccount(span, accountID)

		mode := enum.SyncModeIncremental
		if c.Query("mode") == enum.SyncModeFull.String() {
			mode = enum.SyncModeFull
		}

		account, err := repos.MailAccountRepository.GetByID(ctx, accountID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if account == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": appErrors.ErrAccountNotFound.Error()})
			return
		}

		password, err := s.Decryptor.Decrypt(account.ImapPassword)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "credential decryption failed"})
			return
		}
		account.ImapPassword = password

		summary := s.SyncService.RunSync(ctx, account, mode)
		tracing.LogObjectAsJson(span, "summary", summary)
		if summary.Error != nil {
			tracing.TraceErr(span, summary.Error)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   summary.Error.Error(),
				"summary": summary,
			})
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}

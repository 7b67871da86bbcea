package imapsync

import (
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/lib/pq"

	"github.com/clientflow/mailsync/internal/enum"
	"github.com/clientflow/mailsync/internal/imapwire"
	"github.com/clientflow/mailsync/internal/models"
	"github.com/clientflow/mailsync/internal/utils"
)

// buildEmail maps one parsed wire message onto the cached record.
func (s *SyncService) buildEmail(account *models.MailAccount, folderName string, msg *imapwire.Message) *models.Email {
	email := &models.Email{
		AccountID: account.ID,
		Folder:    folderName,
		UID:       msg.UID,
		Subject:   msg.Subject,
		FromName:  msg.FromName,
		Flags:     pq.StringArray(msg.Flags),
		Direction: folderDirection(folderName),
	}

	email.IsRead = msg.HasFlag(`\Seen`)
	email.IsStarred = msg.HasFlag(`\Flagged`)
	email.IsAnswered = msg.HasFlag(`\Answered`)
	email.IsDraft = msg.HasFlag(`\Draft`)
	email.IsDeleted = msg.HasFlag(`\Deleted`)

	if !msg.InternalDate.IsZero() {
		email.ReceivedAt = utils.TimePtr(msg.InternalDate)
	}

	email.FromAddress = imapwire.PlaceholderSender
	if msg.FromAddress != imapwire.PlaceholderSender {
		syntaxValidation := mailvalidate.ValidateEmailSyntax(msg.FromAddress)
		if syntaxValidation.IsValid {
			email.FromAddress = syntaxValidation.CleanEmail
		}
	}

	email.BodyText = msg.BodyText

	return email
}

// folderDirection infers message direction from the folder name; the
// server does not transmit it.
func folderDirection(folderName string) enum.EmailDirection {
	if strings.Contains(strings.ToLower(folderName), "sent") {
		return enum.EmailOutbound
	}
	return enum.EmailInbound
}

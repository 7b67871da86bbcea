package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clientflow/mailsync/interfaces"
	"github.com/clientflow/mailsync/internal/models"
	"github.com/clientflow/mailsync/internal/tracing"
	"github.com/clientflow/mailsync/internal/utils"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

// Upsert writes the email keyed by (account_id, folder, uid). It never
// reads first: an existing row for the same key is overwritten with the
// latest flags and body, which makes re-running a sync a content no-op.
// The conflict clause keeps concurrent runs on the same keys safe without
// any locking in the engine.
func (r *emailRepository) Upsert(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil {
		return nil
	}

	if email.Subject != "" {
		email.CleanSubject = utils.NormalizeSubject(email.Subject)
	}
	email.UpdatedAt = utils.Now()

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "folder"}, {Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subject", "clean_subject", "from_address", "from_name",
			"flags", "is_read", "is_starred", "is_answered", "is_draft", "is_deleted",
			"direction", "received_at", "body_text", "updated_at",
		}),
	}).Create(email)

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to upsert email: %w", result.Error)
	}

	return nil
}

func (r *emailRepository) GetByUID(ctx context.Context, accountID, folder string, uid uint32) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ? AND uid = ?", accountID, folder, uid).
		First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) ListByFolder(ctx context.Context, accountID, folder string, limit, offset int) ([]*models.Email, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var emails []*models.Email
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("account_id = ? AND folder = ?", accountID, folder)

	if err := query.Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if err := query.Order("received_at DESC").Limit(limit).Offset(offset).Find(&emails).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	return emails, total, nil
}

func (r *emailRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.CountByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return total, nil
}

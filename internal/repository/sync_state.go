package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/clientflow/mailsync/interfaces"
	"github.com/clientflow/mailsync/internal/models"
	"github.com/clientflow/mailsync/internal/tracing"
	"github.com/clientflow/mailsync/internal/utils"
)

type folderSyncStateRepository struct {
	db *gorm.DB
}

func NewFolderSyncStateRepository(db *gorm.DB) interfaces.FolderSyncStateRepository {
	return &folderSyncStateRepository{db: db}
}

// GetSyncState retrieves the sync state for a specific account and folder
func (r *folderSyncStateRepository) GetSyncState(ctx context.Context, accountID, folderName string) (*models.FolderSyncState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.GetSyncState")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var state models.FolderSyncState
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND folder_name = ?", accountID, folderName).
		First(&state)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil // No sync state yet
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get sync state: %w", result.Error)
	}

	return &state, nil
}

// GetAccountSyncStates gets all folder sync states for one account
func (r *folderSyncStateRepository) GetAccountSyncStates(ctx context.Context, accountID string) (map[string]*models.FolderSyncState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.GetAccountSyncStates")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var states []models.FolderSyncState
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&states).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get account sync states: %w", err)
	}

	result := make(map[string]*models.FolderSyncState, len(states))
	for i := range states {
		result[states[i].FolderName] = &states[i]
	}

	return result, nil
}

// SaveSyncState saves the sync state for an account folder
func (r *folderSyncStateRepository) SaveSyncState(ctx context.Context, state *models.FolderSyncState) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.SaveSyncState")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	state.LastSync = utils.Now()

	// Try to update first
	result := r.db.WithContext(ctx).
		Model(&models.FolderSyncState{}).
		Where("account_id = ? AND folder_name = ?", state.AccountID, state.FolderName).
		Updates(map[string]interface{}{
			"last_uid":    state.LastUID,
			"last_exists": state.LastExists,
			"last_sync":   state.LastSync,
			"updated_at":  utils.Now(),
		})

	// If no record was updated, create a new one
	if result.RowsAffected == 0 {
		result = r.db.WithContext(ctx).Create(state)
	}

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save sync state: %w", result.Error)
	}

	return nil
}

// DeleteSyncState deletes the sync state for an account folder
func (r *folderSyncStateRepository) DeleteSyncState(ctx context.Context, accountID, folderName string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.DeleteSyncState")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("account_id = ? AND folder_name = ?", accountID, folderName).
		Delete(&models.FolderSyncState{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete sync state: %w", result.Error)
	}

	return nil
}

// DeleteAccountSyncStates deletes all sync states for an account
func (r *folderSyncStateRepository) DeleteAccountSyncStates(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderSyncStateRepository.DeleteAccountSyncStates")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.FolderSyncState{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete account sync states: %w", result.Error)
	}

	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/HeltonFraga01/cortexx-engine/models"
	"gorm.io/gorm"
)

// CampaignErrorLogRepositoryImpl implements CampaignErrorLogRepository interface
type CampaignErrorLogRepositoryImpl struct {
	*BaseRepository[models.CampaignErrorLog, models.CampaignErrorLogFilter]
}

// NewCampaignErrorLogRepository creates a new campaign error log repository
func NewCampaignErrorLogRepository(db *gorm.DB) CampaignErrorLogRepository {
	return &CampaignErrorLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignErrorLog, models.CampaignErrorLogFilter](db),
	}
}

// ListByCampaign retrieves error logs for a campaign with pagination
func (r *CampaignErrorLogRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignErrorLog, error) {
	db := r.getDB(ctx)

	var logs []*models.CampaignErrorLog
	err := db.Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list error logs by campaign: %w", err)
	}

	return logs, nil
}

// ListByContact retrieves error logs for a single contact with pagination
func (r *CampaignErrorLogRepositoryImpl) ListByContact(ctx context.Context, contactID uint, limit, offset int) ([]*models.CampaignErrorLog, error) {
	db := r.getDB(ctx)

	var logs []*models.CampaignErrorLog
	err := db.Where("contact_id = ?", contactID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list error logs by contact: %w", err)
	}

	return logs, nil
}

// ByFilter retrieves error logs based on filter criteria
func (r *CampaignErrorLogRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignErrorLogFilter, orderBy string, limit, offset int) ([]*models.CampaignErrorLog, error) {
	db := r.getDB(ctx)

	var logs []*models.CampaignErrorLog
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&logs).Error
	if err != nil {
		return nil, err
	}

	return logs, nil
}

// Count returns the number of error logs matching the filter
func (r *CampaignErrorLogRepositoryImpl) Count(ctx context.Context, filter models.CampaignErrorLogFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.CampaignErrorLog{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignErrorLogRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignErrorLogFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.ContactID != nil {
		db = db.Where("contact_id = ?", *filter.ContactID)
	}
	if filter.ErrorType != nil {
		db = db.Where("error_type = ?", *filter.ErrorType)
	}

	return db
}

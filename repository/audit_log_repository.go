// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/HeltonFraga01/cortexx-engine/models"
	"gorm.io/gorm"
)

// CampaignAuditLogRepositoryImpl implements CampaignAuditLogRepository interface
type CampaignAuditLogRepositoryImpl struct {
	*BaseRepository[models.CampaignAuditLog, models.CampaignAuditLogFilter]
}

// NewCampaignAuditLogRepository creates a new campaign audit log repository
func NewCampaignAuditLogRepository(db *gorm.DB) CampaignAuditLogRepository {
	return &CampaignAuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignAuditLog, models.CampaignAuditLogFilter](db),
	}
}

// ListByCampaign retrieves audit logs for a campaign with pagination
func (r *CampaignAuditLogRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignAuditLog, error) {
	db := r.getDB(ctx)

	var logs []*models.CampaignAuditLog
	err := db.Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs by campaign: %w", err)
	}

	return logs, nil
}

// ByFilter retrieves audit logs based on filter criteria
func (r *CampaignAuditLogRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignAuditLogFilter, orderBy string, limit, offset int) ([]*models.CampaignAuditLog, error) {
	db := r.getDB(ctx)

	var logs []*models.CampaignAuditLog
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

// Count returns the number of audit logs matching the filter
func (r *CampaignAuditLogRepositoryImpl) Count(ctx context.Context, filter models.CampaignAuditLogFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.CampaignAuditLog{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignAuditLogRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignAuditLogFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Action != nil {
		db = db.Where("action = ?", *filter.Action)
	}
	if filter.Success != nil {
		db = db.Where("success = ?", *filter.Success)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}

package repository

import (
	"context"
	"fmt"

	"time"

	"github.com/HeltonFraga01/cortexx-engine/models"
	"github.com/HeltonFraga01/cortexx-engine/utils"
	"gorm.io/gorm"
)

// CampaignContactRepositoryImpl implements the CampaignContactRepository interface
type CampaignContactRepositoryImpl struct {
	*BaseRepository[models.CampaignContact, models.CampaignContactFilter]
}

// NewCampaignContactRepository creates a new campaign contact repository
func NewCampaignContactRepository(db *gorm.DB) CampaignContactRepository {
	return &CampaignContactRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignContact, models.CampaignContactFilter](db),
	}
}

// ListPending retrieves the contacts still waiting to be processed, in
// ordinal order. This is the only read the queue manager seeds itself from,
// so resumed campaigns can never pick up already-sent contacts.
func (r *CampaignContactRepositoryImpl) ListPending(ctx context.Context, campaignID uint) ([]*models.CampaignContact, error) {
	db := r.getDB(ctx)

	var contacts []*models.CampaignContact
	err := db.Where("campaign_id = ? AND status = ?", campaignID, models.ContactStatusPending).
		Order("ordinal ASC").
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending contacts for campaign %d: %w", campaignID, err)
	}

	return contacts, nil
}

// Update persists the contact row
func (r *CampaignContactRepositoryImpl) Update(ctx context.Context, contact *models.CampaignContact) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	contact.UpdatedAt = utils.UTCNow()

	err = db.Save(contact).Error
	if err != nil {
		return fmt.Errorf("failed to update contact %d: %w", contact.ID, err)
	}

	return nil
}

// CountByStatus returns contact counts per status for a campaign
func (r *CampaignContactRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint) (map[models.ContactStatus]int64, error) {
	db := r.getDB(ctx)

	type row struct {
		Status models.ContactStatus
		Total  int64
	}
	var rows []row
	err := db.Model(&models.CampaignContact{}).
		Select("status, COUNT(*) AS total").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count contacts by status for campaign %d: %w", campaignID, err)
	}

	out := make(map[models.ContactStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

// UpdateReceipt applies a late delivery or read receipt from the gateway.
// Receipts bypass the send loop entirely; only forward transitions are
// applied so an out-of-order read receipt is never downgraded to delivered.
func (r *CampaignContactRepositoryImpl) UpdateReceipt(ctx context.Context, campaignID uint, phone string, status models.ContactStatus, at time.Time) error {
	db := r.getDB(ctx)

	updates := map[string]any{
		"status":     status,
		"updated_at": utils.UTCNow(),
	}
	var allowed []models.ContactStatus
	switch status {
	case models.ContactStatusDelivered:
		updates["delivered_at"] = at
		allowed = []models.ContactStatus{models.ContactStatusSent}
	case models.ContactStatusRead:
		updates["read_at"] = at
		allowed = []models.ContactStatus{models.ContactStatusSent, models.ContactStatusDelivered}
	default:
		return fmt.Errorf("receipt cannot set contact status %q", status)
	}

	return db.Model(&models.CampaignContact{}).
		Where("campaign_id = ? AND phone = ? AND status IN ?", campaignID, phone, allowed).
		Updates(updates).Error
}

// ByFilter retrieves contacts based on filter criteria
func (r *CampaignContactRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignContactFilter, orderBy string, limit, offset int) ([]*models.CampaignContact, error) {
	db := r.getDB(ctx)

	var contacts []*models.CampaignContact
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

	err := query.Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

// Count returns the number of contacts matching the filter
func (r *CampaignContactRepositoryImpl) Count(ctx context.Context, filter models.CampaignContactFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.CampaignContact{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *CampaignContactRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignContactFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Phone != nil {
		db = db.Where("phone = ?", *filter.Phone)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}

	return db
}

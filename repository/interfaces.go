// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// TxManager runs a function inside a single database transaction. Repositories
// called through the returned context share that transaction.
type TxManager interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ByUserID(ctx context.Context, userID uint, limit, offset int) ([]*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error
	MarkPaused(ctx context.Context, id uint, pausedAt time.Time) error
	SetLock(ctx context.Context, id uint, token string, acquiredAt time.Time) error
	ClearLock(ctx context.Context, id uint, token string) error
}

// CampaignContactRepository defines operations for campaign contacts
type CampaignContactRepository interface {
	Repository[models.CampaignContact, models.CampaignContactFilter]
	ListPending(ctx context.Context, campaignID uint) ([]*models.CampaignContact, error)
	Update(ctx context.Context, contact *models.CampaignContact) error
	CountByStatus(ctx context.Context, campaignID uint) (map[models.ContactStatus]int64, error)
	UpdateReceipt(ctx context.Context, campaignID uint, phone string, status models.ContactStatus, at time.Time) error
}

// CampaignAuditLogRepository defines append-only operations for campaign audit logs
type CampaignAuditLogRepository interface {
	Repository[models.CampaignAuditLog, models.CampaignAuditLogFilter]
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignAuditLog, error)
}

// CampaignErrorLogRepository defines append-only operations for campaign error logs
type CampaignErrorLogRepository interface {
	Repository[models.CampaignErrorLog, models.CampaignErrorLogFilter]
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignErrorLog, error)
	ListByContact(ctx context.Context, contactID uint, limit, offset int) ([]*models.CampaignErrorLog, error)
}

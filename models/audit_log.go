package models

import (
	"encoding/json"
	"time"
)

// CampaignAuditLog is an immutable record of a campaign lifecycle action
type CampaignAuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CampaignID   uint            `gorm:"not null;index:idx_campaign_audit_campaign_id" json:"campaign_id"`
	Action       string          `gorm:"type:campaign_audit_action;not null;index:idx_campaign_audit_action" json:"action"`
	Actor        *string         `gorm:"size:255" json:"actor,omitempty"`
	Details      *string         `gorm:"type:text" json:"details,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaign_audit_created_at" json:"created_at"`
}

func (CampaignAuditLog) TableName() string {
	return "campaign_audit_logs"
}

// Audit action constants
const (
	AuditActionCampaignCreated   = "campaign_created"
	AuditActionCampaignStarted   = "campaign_started"
	AuditActionCampaignPaused    = "campaign_paused"
	AuditActionCampaignResumed   = "campaign_resumed"
	AuditActionCampaignCancelled = "campaign_cancelled"
	AuditActionCampaignCompleted = "campaign_completed"
	AuditActionCampaignFailed    = "campaign_failed"
	AuditActionLockReclaimed     = "lock_reclaimed"
)

// CampaignAuditLogFilter represents filter criteria for audit log queries
type CampaignAuditLogFilter struct {
	ID            *uint
	CampaignID    *uint
	Action        *string
	Success       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *CampaignAuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

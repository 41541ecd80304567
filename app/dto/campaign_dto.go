package dto

import (
	"time"
)

// MessageTemplateDTO is one message of a campaign sequence
type MessageTemplateDTO struct {
	Kind     string  `json:"kind" validate:"required,oneof=text media"`
	Body     string  `json:"body" validate:"required,max=4096"`
	MediaURL *string `json:"media_url,omitempty" validate:"omitempty,url"`
	Caption  *string `json:"caption,omitempty" validate:"omitempty,max=1024"`
}

// ScheduleWindowDTO restricts sending to a daily time range on selected weekdays
type ScheduleWindowDTO struct {
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Weekdays  []int  `json:"weekdays" validate:"required,min=1,dive,gte=0,lte=6"`
}

// CampaignContactDTO is one recipient with its template variables
type CampaignContactDTO struct {
	Phone     string            `json:"phone" validate:"required"`
	Variables map[string]string `json:"variables,omitempty"`
}

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	UserID          uint                 `json:"-"`
	MessageSequence []MessageTemplateDTO `json:"message_sequence" validate:"required,min=1,dive"`
	Contacts        []CampaignContactDTO `json:"contacts" validate:"required,min=1,dive"`
	DelayMin        int                  `json:"delay_min" validate:"required,gte=5,lte=300"`
	DelayMax        int                  `json:"delay_max" validate:"required,gte=5,lte=300"`
	RandomizeOrder  bool                 `json:"randomize_order"`
	Window          *ScheduleWindowDTO   `json:"window,omitempty"`
	Timezone        string               `json:"timezone,omitempty"`
	Scheduled       bool                 `json:"scheduled"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message       string `json:"message"`
	UUID          string `json:"uuid"`
	Status        string `json:"status"`
	TotalContacts int    `json:"total_contacts"`
	CreatedAt     string `json:"created_at"`
}

// CampaignActionRequest identifies a campaign for a lifecycle action
type CampaignActionRequest struct {
	UUID   string `json:"-"`
	UserID uint   `json:"-"`
}

// CampaignActionResponse represents the response to a lifecycle action
type CampaignActionResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
}

// GetCampaignResponse represents a campaign with its delivery progress
type GetCampaignResponse struct {
	UUID            string               `json:"uuid"`
	Status          string               `json:"status"`
	MessageSequence []MessageTemplateDTO `json:"message_sequence"`
	DelayMin        int                  `json:"delay_min"`
	DelayMax        int                  `json:"delay_max"`
	RandomizeOrder  bool                 `json:"randomize_order"`
	Window          *ScheduleWindowDTO   `json:"window,omitempty"`
	Timezone        string               `json:"timezone"`
	TotalContacts   int                  `json:"total_contacts"`
	SentCount       int                  `json:"sent_count"`
	FailedCount     int                  `json:"failed_count"`
	PendingCount    int                  `json:"pending_count"`
	DeliveredCount  int64                `json:"delivered_count"`
	ReadCount       int64                `json:"read_count"`
	PausedAt        *time.Time           `json:"paused_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       *time.Time           `json:"updated_at,omitempty"`
}

// ListCampaignsRequest represents a paginated listing request
type ListCampaignsRequest struct {
	UserID uint `json:"-"`
	Page   int  `json:"page" validate:"omitempty,gte=1"`
	Limit  int  `json:"limit" validate:"omitempty,gte=1,lte=100"`
}

// ListCampaignsResponse represents the paginated listing response
type ListCampaignsResponse struct {
	Items []GetCampaignResponse `json:"items"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Total int64                 `json:"total"`
}

// AuditLogEntry is one campaign lifecycle record in responses
type AuditLogEntry struct {
	Action       string    `json:"action"`
	Actor        *string   `json:"actor,omitempty"`
	Details      *string   `json:"details,omitempty"`
	Success      bool      `json:"success"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrorLogEntry is one per-contact send failure in responses
type ErrorLogEntry struct {
	ContactID  uint      `json:"contact_id"`
	ErrorType  string    `json:"error_type"`
	Message    string    `json:"message"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReceiptRequest is a gateway callback reporting delivery progress for a
// previously sent message
type ReceiptRequest struct {
	CampaignUUID string    `json:"campaign_uuid" validate:"required,uuid4"`
	Phone        string    `json:"phone" validate:"required"`
	Status       string    `json:"status" validate:"required,oneof=delivered read"`
	Timestamp    time.Time `json:"timestamp"`
}

// ReceiptResponse acknowledges a processed receipt
type ReceiptResponse struct {
	Message string `json:"message"`
}

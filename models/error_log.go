package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// SendErrorType classifies a per-contact send failure
type SendErrorType string

const (
	SendErrorTypeTransient SendErrorType = "transient"
	SendErrorTypePermanent SendErrorType = "permanent"
	SendErrorTypeInternal  SendErrorType = "internal"
)

// String returns the string representation of the error type
func (t SendErrorType) String() string {
	return string(t)
}

// Valid checks if the error type is valid
func (t SendErrorType) Valid() bool {
	switch t {
	case SendErrorTypeTransient, SendErrorTypePermanent, SendErrorTypeInternal:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SendErrorType
func (t *SendErrorType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = SendErrorType(v)
	case []byte:
		*t = SendErrorType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SendErrorType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SendErrorType
func (t SendErrorType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid SendErrorType: %s", t)
	}
	return string(t), nil
}

// CampaignErrorLog is an immutable record of a per-contact send failure
type CampaignErrorLog struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	CampaignID uint          `gorm:"not null;index:idx_campaign_errors_campaign_id" json:"campaign_id"`
	ContactID  uint          `gorm:"not null;index:idx_campaign_errors_contact_id" json:"contact_id"`
	ErrorType  SendErrorType `gorm:"type:send_error_type;not null" json:"error_type"`
	Message    string        `gorm:"type:text;not null" json:"message"`
	RetryCount int           `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaign_errors_created_at" json:"created_at"`
}

func (CampaignErrorLog) TableName() string {
	return "campaign_error_logs"
}

// CampaignErrorLogFilter represents filter criteria for error log queries
type CampaignErrorLogFilter struct {
	ID         *uint
	CampaignID *uint
	ContactID  *uint
	ErrorType  *SendErrorType
}

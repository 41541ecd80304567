package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ContactStatus enumerates the delivery state of a campaign contact
type ContactStatus string

const (
	ContactStatusPending   ContactStatus = "pending"
	ContactStatusSent      ContactStatus = "sent"
	ContactStatusDelivered ContactStatus = "delivered"
	ContactStatusRead      ContactStatus = "read"
	ContactStatusFailed    ContactStatus = "failed"
)

// String returns the string representation of the status
func (s ContactStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusPending, ContactStatusSent, ContactStatusDelivered,
		ContactStatusRead, ContactStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ContactStatus
func (s *ContactStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ContactStatus(v)
	case []byte:
		*s = ContactStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ContactStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ContactStatus
func (s ContactStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ContactStatus: %s", s)
	}
	return string(s), nil
}

// ContactVariables holds per-contact template bindings
type ContactVariables map[string]string

// Value implements the driver.Valuer interface for ContactVariables
func (v ContactVariables) Value() (driver.Value, error) {
	if v == nil {
		return json.Marshal(ContactVariables{})
	}
	return json.Marshal(v)
}

// Scan implements the sql.Scanner interface for ContactVariables
func (v *ContactVariables) Scan(value any) error {
	if value == nil {
		*v = ContactVariables{}
		return nil
	}

	var bytes []byte
	switch val := value.(type) {
	case []byte:
		bytes = val
	case string:
		bytes = []byte(val)
	default:
		return fmt.Errorf("cannot scan %T into ContactVariables", value)
	}

	return json.Unmarshal(bytes, v)
}

// CampaignContact is one recipient within a campaign. A contact moves
// pending -> sent -> {delivered -> read} | failed and never returns to
// pending once it has left that state. delivered_at and read_at arrive late
// via gateway receipts, outside the send loop.
type CampaignContact struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CampaignID  uint             `gorm:"not null;index:idx_campaign_contacts_campaign_id" json:"campaign_id"`
	Phone       string           `gorm:"size:20;not null;index:idx_campaign_contacts_phone" json:"phone"`
	Variables   ContactVariables `gorm:"column:variables_json;type:jsonb;not null" json:"variables"`
	Status      ContactStatus    `gorm:"type:contact_status;not null;default:'pending';index:idx_campaign_contacts_status" json:"status"`
	RetryCount  int              `gorm:"not null;default:0" json:"retry_count"`
	Ordinal     int              `gorm:"not null;index:idx_campaign_contacts_ordinal" json:"ordinal"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (CampaignContact) TableName() string {
	return "campaign_contacts"
}

// CanTransitionTo checks the one-way contact state machine
func (c *CampaignContact) CanTransitionTo(newStatus ContactStatus) bool {
	switch c.Status {
	case ContactStatusPending:
		return newStatus == ContactStatusSent || newStatus == ContactStatusFailed
	case ContactStatusSent:
		return newStatus == ContactStatusDelivered || newStatus == ContactStatusRead
	case ContactStatusDelivered:
		return newStatus == ContactStatusRead
	default:
		return false
	}
}

// IsProcessed reports whether the send loop has already handled this contact
func (c *CampaignContact) IsProcessed() bool {
	return c.Status != ContactStatusPending
}

// CampaignContactFilter represents filter criteria for campaign contacts
type CampaignContactFilter struct {
	ID         *uint          `json:"id,omitempty"`
	CampaignID *uint          `json:"campaign_id,omitempty"`
	Phone      *string        `json:"phone,omitempty"`
	Status     *ContactStatus `json:"status,omitempty"`
}

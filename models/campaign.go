// Package models contains domain entities and business models for the campaign engine
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled,
		CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed from this status
func (s CampaignStatus) IsTerminal() bool {
	switch s {
	case CampaignStatusCompleted, CampaignStatusCancelled, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// MessageTemplate is one entry of a campaign's message sequence. Kind selects
// the variant; text templates may reference contact variables as {{name}}.
type MessageTemplate struct {
	Kind     string  `json:"kind"` // "text" or "media"
	Body     string  `json:"body"`
	MediaURL *string `json:"media_url,omitempty"`
	Caption  *string `json:"caption,omitempty"`
}

// MessageSequence is the ordered list of templates sent per contact
type MessageSequence []MessageTemplate

// Value implements the driver.Valuer interface for MessageSequence
func (m MessageSequence) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for MessageSequence
func (m *MessageSequence) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MessageSequence", value)
	}

	return json.Unmarshal(bytes, m)
}

// ScheduleWindow restricts sending to a time-of-day range on selected
// weekdays. Times are "HH:MM" in the campaign's timezone. Windows never
// cross midnight; that shape is rejected at creation.
type ScheduleWindow struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Weekdays  []int  `json:"weekdays"` // time.Weekday values, Sunday == 0
}

// Value implements the driver.Valuer interface for ScheduleWindow
func (w ScheduleWindow) Value() (driver.Value, error) {
	return json.Marshal(w)
}

// Scan implements the sql.Scanner interface for ScheduleWindow
func (w *ScheduleWindow) Scan(value any) error {
	if value == nil {
		*w = ScheduleWindow{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ScheduleWindow", value)
	}

	return json.Unmarshal(bytes, w)
}

// ParseTimes returns the start and end of the window as minutes since
// midnight. It assumes the window already passed Validate.
func (w *ScheduleWindow) ParseTimes() (startMin, endMin int, err error) {
	start, err := parseClock(w.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(w.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ActiveOn reports whether the window permits sending on the given weekday
func (w *ScheduleWindow) ActiveOn(day time.Weekday) bool {
	for _, d := range w.Weekdays {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// Validate checks the window shape: parseable times, start strictly before
// end on the same day, and at least one valid weekday. Zero-width and
// cross-midnight windows are rejected here so the send loop never has to
// handle them.
func (w *ScheduleWindow) Validate() error {
	start, err := parseClock(w.StartTime)
	if err != nil {
		return fmt.Errorf("invalid window start time: %w", err)
	}
	end, err := parseClock(w.EndTime)
	if err != nil {
		return fmt.Errorf("invalid window end time: %w", err)
	}
	if start >= end {
		return fmt.Errorf("window start %q must be before end %q", w.StartTime, w.EndTime)
	}
	if len(w.Weekdays) == 0 {
		return fmt.Errorf("window must include at least one weekday")
	}
	for _, d := range w.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid weekday %d", d)
		}
	}
	return nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Campaign represents one bulk-send job in the database
type Campaign struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	UserID          uint            `gorm:"not null;index:idx_campaigns_user_id" json:"user_id"`
	Status          CampaignStatus  `gorm:"type:campaign_status;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	MessageSequence MessageSequence `gorm:"column:message_sequence_json;type:jsonb;not null" json:"message_sequence"`
	DelayMin        int             `gorm:"not null" json:"delay_min"` // seconds
	DelayMax        int             `gorm:"not null" json:"delay_max"` // seconds
	RandomizeOrder  bool            `gorm:"not null;default:false" json:"randomize_order"`
	Window          *ScheduleWindow `gorm:"column:window_json;type:jsonb" json:"window,omitempty"`
	Timezone        string          `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	CurrentIndex    int             `gorm:"not null;default:0" json:"current_index"`
	SentCount       int             `gorm:"not null;default:0" json:"sent_count"`
	FailedCount     int             `gorm:"not null;default:0" json:"failed_count"`
	TotalContacts   int             `gorm:"not null;default:0" json:"total_contacts"`
	ProcessingLock  *string         `gorm:"size:64" json:"processing_lock,omitempty"`
	LockAcquiredAt  *time.Time      `json:"lock_acquired_at,omitempty"`
	PausedAt        *time.Time      `json:"paused_at,omitempty"`
	CreatedAt       time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`

	// Relations
	Contacts []CampaignContact `gorm:"foreignKey:CampaignID" json:"contacts,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCancelled
	case CampaignStatusRunning:
		return newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusCancelled ||
			newStatus == CampaignStatusFailed
	case CampaignStatusPaused:
		return newStatus == CampaignStatusRunning ||
			newStatus == CampaignStatusCancelled ||
			newStatus == CampaignStatusFailed
	default:
		return false
	}
}

// IsStartable reports whether StartCampaign may act on this campaign
func (c *Campaign) IsStartable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusScheduled
}

// PendingCount derives the number of contacts not yet processed
func (c *Campaign) PendingCount() int {
	return c.TotalContacts - c.SentCount - c.FailedCount
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	UserID        *uint           `json:"user_id,omitempty"`
	Status        *CampaignStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}

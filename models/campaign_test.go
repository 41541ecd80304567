package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCampaignStatusTransitions(t *testing.T) {
	all := []CampaignStatus{
		CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled,
		CampaignStatusFailed,
	}

	allowed := map[CampaignStatus][]CampaignStatus{
		CampaignStatusDraft:     {CampaignStatusScheduled, CampaignStatusRunning, CampaignStatusCancelled},
		CampaignStatusScheduled: {CampaignStatusRunning, CampaignStatusCancelled},
		CampaignStatusRunning:   {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled, CampaignStatusFailed},
		CampaignStatusPaused:    {CampaignStatusRunning, CampaignStatusCancelled, CampaignStatusFailed},
		CampaignStatusCompleted: {},
		CampaignStatusCancelled: {},
		CampaignStatusFailed:    {},
	}

	for from, targets := range allowed {
		permitted := make(map[CampaignStatus]bool, len(targets))
		for _, to := range targets {
			permitted[to] = true
		}
		campaign := &Campaign{Status: from}
		for _, to := range all {
			assert.Equal(t, permitted[to], campaign.CanTransitionTo(to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestCampaignStatusIsTerminal(t *testing.T) {
	assert.True(t, CampaignStatusCompleted.IsTerminal())
	assert.True(t, CampaignStatusCancelled.IsTerminal())
	assert.True(t, CampaignStatusFailed.IsTerminal())
	assert.False(t, CampaignStatusDraft.IsTerminal())
	assert.False(t, CampaignStatusRunning.IsTerminal())
	assert.False(t, CampaignStatusPaused.IsTerminal())
}

func TestCampaignIsStartable(t *testing.T) {
	assert.True(t, (&Campaign{Status: CampaignStatusDraft}).IsStartable())
	assert.True(t, (&Campaign{Status: CampaignStatusScheduled}).IsStartable())
	assert.False(t, (&Campaign{Status: CampaignStatusRunning}).IsStartable())
	assert.False(t, (&Campaign{Status: CampaignStatusPaused}).IsStartable())
	assert.False(t, (&Campaign{Status: CampaignStatusCompleted}).IsStartable())
}

func TestCampaignPendingCount(t *testing.T) {
	campaign := &Campaign{TotalContacts: 10, SentCount: 6, FailedCount: 1}
	assert.Equal(t, 3, campaign.PendingCount())

	campaign = &Campaign{TotalContacts: 5, SentCount: 5}
	assert.Equal(t, 0, campaign.PendingCount())
}

func TestScheduleWindowValidate(t *testing.T) {
	tests := []struct {
		name    string
		window  ScheduleWindow
		wantErr bool
	}{
		{"valid business hours", ScheduleWindow{StartTime: "09:00", EndTime: "18:00", Weekdays: []int{1, 2, 3, 4, 5}}, false},
		{"valid single weekday", ScheduleWindow{StartTime: "00:00", EndTime: "23:59", Weekdays: []int{0}}, false},
		{"zero width", ScheduleWindow{StartTime: "09:00", EndTime: "09:00", Weekdays: []int{1}}, true},
		{"cross midnight", ScheduleWindow{StartTime: "22:00", EndTime: "06:00", Weekdays: []int{1}}, true},
		{"no weekdays", ScheduleWindow{StartTime: "09:00", EndTime: "18:00", Weekdays: []int{}}, true},
		{"weekday out of range", ScheduleWindow{StartTime: "09:00", EndTime: "18:00", Weekdays: []int{7}}, true},
		{"negative weekday", ScheduleWindow{StartTime: "09:00", EndTime: "18:00", Weekdays: []int{-1}}, true},
		{"unparseable start", ScheduleWindow{StartTime: "9am", EndTime: "18:00", Weekdays: []int{1}}, true},
		{"unparseable end", ScheduleWindow{StartTime: "09:00", EndTime: "25:00", Weekdays: []int{1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduleWindowActiveOn(t *testing.T) {
	window := ScheduleWindow{Weekdays: []int{1, 3, 5}}
	assert.True(t, window.ActiveOn(time.Monday))
	assert.True(t, window.ActiveOn(time.Wednesday))
	assert.False(t, window.ActiveOn(time.Sunday))
	assert.False(t, window.ActiveOn(time.Saturday))
}

func TestScheduleWindowParseTimes(t *testing.T) {
	window := ScheduleWindow{StartTime: "09:30", EndTime: "17:45", Weekdays: []int{1}}
	start, end, err := window.ParseTimes()
	assert.NoError(t, err)
	assert.Equal(t, 9*60+30, start)
	assert.Equal(t, 17*60+45, end)
}

func TestContactTransitionsOnlyForward(t *testing.T) {
	contactIn := func(s ContactStatus) *CampaignContact {
		return &CampaignContact{Status: s}
	}

	assert.True(t, contactIn(ContactStatusPending).CanTransitionTo(ContactStatusSent))
	assert.True(t, contactIn(ContactStatusPending).CanTransitionTo(ContactStatusFailed))
	assert.True(t, contactIn(ContactStatusSent).CanTransitionTo(ContactStatusDelivered))
	assert.True(t, contactIn(ContactStatusSent).CanTransitionTo(ContactStatusRead))
	assert.True(t, contactIn(ContactStatusDelivered).CanTransitionTo(ContactStatusRead))

	// The delivery ladder never moves backwards
	assert.False(t, contactIn(ContactStatusRead).CanTransitionTo(ContactStatusDelivered))
	assert.False(t, contactIn(ContactStatusSent).CanTransitionTo(ContactStatusPending))
	assert.False(t, contactIn(ContactStatusDelivered).CanTransitionTo(ContactStatusSent))
	assert.False(t, contactIn(ContactStatusFailed).CanTransitionTo(ContactStatusRead))
	assert.False(t, contactIn(ContactStatusFailed).CanTransitionTo(ContactStatusSent))
}

func TestContactIsProcessed(t *testing.T) {
	assert.False(t, (&CampaignContact{Status: ContactStatusPending}).IsProcessed())
	assert.True(t, (&CampaignContact{Status: ContactStatusSent}).IsProcessed())
	assert.True(t, (&CampaignContact{Status: ContactStatusFailed}).IsProcessed())
}

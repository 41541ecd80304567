package scheduler

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/config"
	"github.com/HeltonFraga01/cortexx-engine/models"
	"github.com/HeltonFraga01/cortexx-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		LockTTL:            time.Hour,
		LockStaleAfter:     10 * time.Minute,
		LockAcquireTimeout: time.Second,
		MaxSendRetries:     2,
		RetryBaseDelay:     time.Millisecond,
		QuotaDeniedPause:   5 * time.Millisecond,
		DefaultCountryCode: "55",
	}
}

type queueHarness struct {
	campRepo *memCampaignRepo
	contRepo *memContactRepo
	errRepo  *memErrorRepo
	gateway  *scriptedGateway
	quota    *stubQuota
	lock     *memLock
	campaign *models.Campaign
	contacts []*models.CampaignContact
}

func newQueueHarness(t *testing.T, contactCount int) *queueHarness {
	t.Helper()
	h := &queueHarness{
		campRepo: newMemCampaignRepo(),
		contRepo: newMemContactRepo(),
		errRepo:  &memErrorRepo{},
		gateway:  newScriptedGateway(),
		quota:    &stubQuota{},
		lock:     newMemLock(),
	}

	h.campaign = &models.Campaign{
		UserID: 1,
		Status: models.CampaignStatusRunning,
		MessageSequence: models.MessageSequence{
			{Kind: "text", Body: "Hi {{name}}"},
		},
		Timezone:      "UTC",
		TotalContacts: contactCount,
		CreatedAt:     utils.UTCNow(),
	}
	h.campRepo.put(h.campaign)

	for i := 0; i < contactCount; i++ {
		contact := &models.CampaignContact{
			CampaignID: h.campaign.ID,
			Phone:      phoneFor(i),
			Variables:  models.ContactVariables{"name": "c"},
			Status:     models.ContactStatusPending,
			Ordinal:    i,
		}
		h.contRepo.put(contact)
		h.contacts = append(h.contacts, contact)
	}
	return h
}

func phoneFor(i int) string {
	return "5511999990" + string(rune('0'+i))
}

func (h *queueHarness) newQueue(t *testing.T) *QueueManager {
	return h.newQueueWithConfig(t, testEngineConfig())
}

func (h *queueHarness) newQueueWithConfig(t *testing.T, cfg config.EngineConfig) *QueueManager {
	t.Helper()
	token, err := h.lock.Acquire(context.Background(), h.campaign.ID, "test")
	require.NoError(t, err)
	return NewQueueManager(
		h.campaign, h.contacts, time.UTC,
		h.gateway, h.quota, h.lock, token,
		passthroughTxManager{}, h.campRepo, h.contRepo, h.errRepo,
		cfg, log.New(io.Discard, "", 0),
	)
}

func TestQueueManagerCompletesAllContacts(t *testing.T) {
	h := newQueueHarness(t, 3)
	q := h.newQueue(t)

	outcome, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	// Contacts go out in ordinal order when the campaign does not randomize
	assert.Equal(t, []string{phoneFor(0), phoneFor(1), phoneFor(2)}, h.gateway.sentPhones())

	stored, err := h.campRepo.ByID(context.Background(), h.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.SentCount)
	assert.Equal(t, 0, stored.FailedCount)
	assert.Equal(t, 3, stored.CurrentIndex)
	assert.Equal(t, 0, stored.PendingCount())

	pending, err := h.contRepo.ListPending(context.Background(), h.campaign.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueueManagerRetriesTransientFailures(t *testing.T) {
	h := newQueueHarness(t, 1)
	phone := h.contacts[0].Phone
	h.gateway.failWith(phone,
		NewTransientError("NETWORK", "gateway unreachable", nil),
		NewTransientError("RATE_LIMITED", "gateway rate limit", nil),
	)

	q := h.newQueue(t)
	outcome, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	// Two failures then a success within the retry budget
	assert.Len(t, h.gateway.sentPhones(), 1)

	contact, err := h.contRepo.ByID(context.Background(), h.contacts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactStatusSent, contact.Status)
	assert.Equal(t, 2, contact.RetryCount)
}

func TestQueueManagerFailsContactAfterRetryExhaustion(t *testing.T) {
	h := newQueueHarness(t, 2)
	phone := h.contacts[0].Phone
	// MaxSendRetries is 2, so three transient failures exhaust the budget
	h.gateway.failWith(phone,
		NewTransientError("NETWORK", "down", nil),
		NewTransientError("NETWORK", "down", nil),
		NewTransientError("NETWORK", "down", nil),
	)

	q := h.newQueue(t)
	outcome, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	contact, err := h.contRepo.ByID(context.Background(), h.contacts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactStatusFailed, contact.Status)

	stored, _ := h.campRepo.ByID(context.Background(), h.campaign.ID)
	assert.Equal(t, 1, stored.SentCount)
	assert.Equal(t, 1, stored.FailedCount)

	logs, err := h.errRepo.ListByCampaign(context.Background(), h.campaign.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SendErrorTypeTransient, logs[0].ErrorType)
	assert.Equal(t, h.contacts[0].ID, logs[0].ContactID)
}

func TestQueueManagerPermanentFailureSkipsRetries(t *testing.T) {
	h := newQueueHarness(t, 1)
	phone := h.contacts[0].Phone
	h.gateway.failWith(phone, NewPermanentError("INVALID_NUMBER", "not on whatsapp", nil))

	q := h.newQueue(t)
	outcome, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	// No successful send and no retry attempts
	assert.Empty(t, h.gateway.sentPhones())

	contact, _ := h.contRepo.ByID(context.Background(), h.contacts[0].ID)
	assert.Equal(t, models.ContactStatusFailed, contact.Status)
	assert.Equal(t, 0, contact.RetryCount)

	logs, _ := h.errRepo.ListByCampaign(context.Background(), h.campaign.ID, 0, 0)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SendErrorTypePermanent, logs[0].ErrorType)
}

func TestQueueManagerStopsBeforeNextSendOnPause(t *testing.T) {
	h := newQueueHarness(t, 3)
	q := h.newQueue(t)
	q.Stop(StopReasonPause)

	outcome, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePaused, outcome)

	// The pause arrived before the first send
	assert.Empty(t, h.gateway.sentPhones())
	pending, _ := h.contRepo.ListPending(context.Background(), h.campaign.ID)
	assert.Len(t, pending, 3)
}

func TestQueueManagerCancelOutcome(t *testing.T) {
	h := newQueueHarness(t, 2)
	q := h.newQueue(t)
	q.Stop(StopReasonCancel)

	outcome, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
}

func TestQueueManagerWaitsOutQuotaDenial(t *testing.T) {
	h := newQueueHarness(t, 2)
	h.quota.denies = 3

	q := h.newQueue(t)
	outcome, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	// Denials delayed the loop but never failed a contact
	assert.Len(t, h.gateway.sentPhones(), 2)
	assert.GreaterOrEqual(t, h.quota.calls, 5)
}

func TestQueueManagerPauseInterruptsWindowWait(t *testing.T) {
	h := newQueueHarness(t, 1)
	// A window on a different weekday keeps the loop waiting
	otherDay := (int(utils.UTCNow().Weekday()) + 3) % 7
	h.campaign.Window = &models.ScheduleWindow{
		StartTime: "09:00",
		EndTime:   "18:00",
		Weekdays:  []int{otherDay},
	}
	h.campRepo.put(h.campaign)

	q := h.newQueue(t)
	done := make(chan QueueOutcome, 1)
	go func() {
		outcome, _ := q.Run(context.Background())
		done <- outcome
	}()

	time.Sleep(20 * time.Millisecond)
	q.Stop(StopReasonPause)

	select {
	case outcome := <-done:
		assert.Equal(t, OutcomePaused, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not react to pause during window wait")
	}
	assert.Empty(t, h.gateway.sentPhones())
}

func TestQueueManagerContextCancellation(t *testing.T) {
	h := newQueueHarness(t, 1)
	otherDay := (int(utils.UTCNow().Weekday()) + 3) % 7
	h.campaign.Window = &models.ScheduleWindow{
		StartTime: "09:00",
		EndTime:   "18:00",
		Weekdays:  []int{otherDay},
	}

	q := h.newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan QueueOutcome, 1)
	go func() {
		outcome, _ := q.Run(ctx)
		done <- outcome
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case outcome := <-done:
		assert.Equal(t, OutcomeStopped, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not react to context cancellation")
	}
}

func TestQueueManagerHeartbeatsRowLock(t *testing.T) {
	h := newQueueHarness(t, 1)
	h.campaign.Window = blockedWindow()
	h.campRepo.put(h.campaign)

	// A short TTL makes the refresh loop tick fast enough to observe
	cfg := testEngineConfig()
	cfg.LockTTL = 30 * time.Millisecond
	q := h.newQueueWithConfig(t, cfg)

	done := make(chan QueueOutcome, 1)
	go func() {
		outcome, _ := q.Run(context.Background())
		done <- outcome
	}()

	// Each refresh mirrors the token and a fresh timestamp into the row
	require.Eventually(t, func() bool {
		c, err := h.campRepo.ByID(context.Background(), h.campaign.ID)
		if err != nil || c == nil {
			return false
		}
		return c.ProcessingLock != nil && *c.ProcessingLock == q.token && c.LockAcquiredAt != nil
	}, 2*time.Second, 5*time.Millisecond)

	first, err := h.campRepo.ByID(context.Background(), h.campaign.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		c, _ := h.campRepo.ByID(context.Background(), h.campaign.ID)
		return c.LockAcquiredAt.After(*first.LockAcquiredAt)
	}, 2*time.Second, 5*time.Millisecond)

	q.Stop(StopReasonPause)
	select {
	case outcome := <-done:
		assert.Equal(t, OutcomePaused, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not react to pause")
	}
}

func TestQueueManagerPersistFailureLeavesStateConsistent(t *testing.T) {
	h := newQueueHarness(t, 1)
	h.contRepo.failOn = "update"

	q := h.newQueue(t)
	outcome, err := q.Run(context.Background())
	assert.Equal(t, OutcomeFailed, outcome)
	require.Error(t, err)

	// The failed transaction leaves no trace in memory or the store
	assert.Equal(t, 0, h.campaign.SentCount)
	assert.Equal(t, 0, h.campaign.FailedCount)
	assert.Equal(t, 0, h.campaign.CurrentIndex)

	stored, err := h.campRepo.ByID(context.Background(), h.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.SentCount)
	assert.Equal(t, 0, stored.FailedCount)

	pending, err := h.contRepo.ListPending(context.Background(), h.campaign.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stored.TotalContacts, stored.SentCount+stored.FailedCount+len(pending))
}

func TestQueueManagerPersistFailureEndsRun(t *testing.T) {
	h := newQueueHarness(t, 2)
	h.campRepo.failOn = "update"

	q := h.newQueue(t)
	outcome, err := q.Run(context.Background())
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Error(t, err)
}

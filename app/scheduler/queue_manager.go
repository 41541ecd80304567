package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/config"
	"github.com/HeltonFraga01/cortexx-engine/models"
	"github.com/HeltonFraga01/cortexx-engine/repository"
	"github.com/HeltonFraga01/cortexx-engine/utils"
)

// errSendInterrupted means a retry wait was cut short by a stop request,
// lost lock, or context cancellation; the contact stays pending
var errSendInterrupted = errors.New("send interrupted before completion")

// StopReason tells a running queue why it is being asked to stop
type StopReason string

const (
	StopReasonPause  StopReason = "pause"
	StopReasonCancel StopReason = "cancel"
)

// QueueOutcome is the terminal result of one queue run
type QueueOutcome string

const (
	// OutcomeCompleted means every pending contact was processed
	OutcomeCompleted QueueOutcome = "completed"
	// OutcomePaused means a pause request interrupted the loop
	OutcomePaused QueueOutcome = "paused"
	// OutcomeCancelled means a cancel request interrupted the loop
	OutcomeCancelled QueueOutcome = "cancelled"
	// OutcomeFailed means the loop hit an unrecoverable internal error
	// (persistence failure, lost lock)
	OutcomeFailed QueueOutcome = "failed"
	// OutcomeStopped means the process context was cancelled (shutdown)
	OutcomeStopped QueueOutcome = "stopped"
)

// QueueManager drives the send loop for a single campaign. It owns no
// lifecycle decisions: it consumes the pending contact list, persists
// per-contact progress atomically, and reports how it ended. The caller
// holds the processing lock for the whole run and translates the outcome
// into a campaign status transition.
type QueueManager struct {
	campaign *models.Campaign
	contacts []*models.CampaignContact
	location *time.Location

	gateway  GatewayClient
	quota    QuotaClient
	lock     ProcessingLock
	token    string
	txm      repository.TxManager
	campRepo repository.CampaignRepository
	contRepo repository.CampaignContactRepository
	errRepo  repository.CampaignErrorLogRepository
	cfg      config.EngineConfig
	logger   *log.Logger

	stopCh   chan StopReason
	stopped  *StopReason
	lockLost chan struct{}
	rng      *rand.Rand
}

// NewQueueManager builds a queue for the given campaign over its pending
// contacts. Contacts must arrive in ordinal order; the queue shuffles them
// itself when the campaign randomizes order.
func NewQueueManager(
	campaign *models.Campaign,
	contacts []*models.CampaignContact,
	loc *time.Location,
	gateway GatewayClient,
	quota QuotaClient,
	lock ProcessingLock,
	token string,
	txm repository.TxManager,
	campRepo repository.CampaignRepository,
	contRepo repository.CampaignContactRepository,
	errRepo repository.CampaignErrorLogRepository,
	cfg config.EngineConfig,
	logger *log.Logger,
) *QueueManager {
	q := &QueueManager{
		campaign: campaign,
		contacts: contacts,
		location: loc,
		gateway:  gateway,
		quota:    quota,
		lock:     lock,
		token:    token,
		txm:      txm,
		campRepo: campRepo,
		contRepo: contRepo,
		errRepo:  errRepo,
		cfg:      cfg,
		logger:   logger,
		stopCh:   make(chan StopReason, 1),
		lockLost: make(chan struct{}),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if campaign.RandomizeOrder {
		q.rng.Shuffle(len(q.contacts), func(i, j int) {
			q.contacts[i], q.contacts[j] = q.contacts[j], q.contacts[i]
		})
	}
	return q
}

// Stop asks the running loop to end with the given reason. The first reason
// wins; the loop observes it before the next send, never mid-send.
func (q *QueueManager) Stop(reason StopReason) {
	select {
	case q.stopCh <- reason:
	default:
	}
}

// Run processes pending contacts until exhaustion, a stop request, context
// cancellation, or an unrecoverable error. The error return is non-nil only
// for OutcomeFailed.
func (q *QueueManager) Run(ctx context.Context) (QueueOutcome, error) {
	campaignsRunning.Inc()
	defer campaignsRunning.Dec()

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go q.refreshLock(refreshCtx)

	for _, contact := range q.contacts {
		if outcome, done := q.checkSignals(ctx); done {
			return outcome, nil
		}

		if outcome, done, err := q.waitForWindow(ctx); done {
			return outcome, err
		}

		if outcome, done, err := q.waitForQuota(ctx); done {
			return outcome, err
		}

		sendErr := q.sendWithRetry(ctx, contact)
		if errors.Is(sendErr, errSendInterrupted) {
			// The retry wait was cut short; the contact stays pending so a
			// resumed run retries it from scratch
			if outcome, done := q.checkSignals(ctx); done {
				return outcome, nil
			}
			return OutcomePaused, nil
		}
		if sendErr != nil {
			if se := ClassifySendError(sendErr); se.Type == models.SendErrorTypeInternal {
				return OutcomeFailed, sendErr
			}
		}

		if err := q.persistResult(ctx, contact, sendErr); err != nil {
			q.logger.Printf("❌ campaign %d: failed to persist result for contact %d: %v",
				q.campaign.ID, contact.ID, err)
			return OutcomeFailed, fmt.Errorf("persist contact result: %w", err)
		}

		if q.campaign.PendingCount() > 0 {
			if outcome, done := q.humanizedDelay(ctx); done {
				return outcome, nil
			}
		}
	}

	return OutcomeCompleted, nil
}

// checkSignals polls for stop requests without blocking
func (q *QueueManager) checkSignals(ctx context.Context) (QueueOutcome, bool) {
	select {
	case <-ctx.Done():
		return OutcomeStopped, true
	case <-q.lockLost:
		return OutcomeFailed, true
	default:
	}
	if reason, ok := q.stopRequested(); ok {
		return outcomeFor(reason), true
	}
	return "", false
}

// stopRequested drains at most one stop request and remembers it, so a
// request observed inside a nested wait is never lost
func (q *QueueManager) stopRequested() (StopReason, bool) {
	if q.stopped != nil {
		return *q.stopped, true
	}
	select {
	case reason := <-q.stopCh:
		q.stopped = &reason
		return reason, true
	default:
		return "", false
	}
}

func outcomeFor(reason StopReason) QueueOutcome {
	if reason == StopReasonCancel {
		return OutcomeCancelled
	}
	return OutcomePaused
}

// waitForWindow blocks until the campaign's scheduling window permits
// sending. The wait is interruptible so a pause during an overnight gap
// returns promptly.
func (q *QueueManager) waitForWindow(ctx context.Context) (QueueOutcome, bool, error) {
	for {
		status := EvaluateWindow(q.campaign.Window, q.location, utils.UTCNow())
		if status.Active {
			return "", false, nil
		}

		wait := time.Until(*status.NextActive)
		if wait < 0 {
			wait = time.Second
		}
		q.logger.Printf("⏳ campaign %d: outside window, sleeping %s until %s",
			q.campaign.ID, wait.Round(time.Second), status.NextActive.Format(time.RFC3339))

		if outcome, done := q.sleep(ctx, wait); done {
			return outcome, true, nil
		}
	}
}

// waitForQuota blocks until the tenant has plan allowance for one more send.
// Denials and quota-service outages both back off rather than failing the
// contact.
func (q *QueueManager) waitForQuota(ctx context.Context) (QueueOutcome, bool, error) {
	for {
		allowed, err := q.quota.CheckAndConsume(ctx, q.campaign.UserID, 1)
		if err == nil && allowed {
			return "", false, nil
		}
		if err != nil {
			q.logger.Printf("⚠️ campaign %d: quota check failed: %v", q.campaign.ID, err)
		} else {
			q.logger.Printf("⏸️ campaign %d: quota exhausted, pausing %s",
				q.campaign.ID, q.cfg.QuotaDeniedPause)
		}
		if outcome, done := q.sleep(ctx, q.cfg.QuotaDeniedPause); done {
			return outcome, true, nil
		}
	}
}

// sendWithRetry renders the sequence for one contact and sends it, retrying
// transient failures with exponential backoff. A nil return means the
// contact was sent; a non-nil return is the final classified failure.
func (q *QueueManager) sendWithRetry(ctx context.Context, contact *models.CampaignContact) error {
	messages := RenderSequence(q.campaign.MessageSequence, contact.Variables)

	var lastErr error
	for attempt := 0; attempt <= q.cfg.MaxSendRetries; attempt++ {
		if attempt > 0 {
			backoff := q.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
			if _, done := q.sleep(ctx, backoff); done {
				return errSendInterrupted
			}
			sendRetriesTotal.Inc()
			contact.RetryCount++
		}

		start := time.Now()
		err := q.gateway.Send(ctx, contact.Phone, messages)
		sendDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}

		se := ClassifySendError(err)
		lastErr = se
		if se.Type == models.SendErrorTypePermanent {
			q.logger.Printf("🚫 campaign %d: permanent failure for contact %d (%s): %s",
				q.campaign.ID, contact.ID, contact.Phone, se.Message)
			return se
		}
		q.logger.Printf("🔁 campaign %d: transient failure for contact %d (attempt %d/%d): %v",
			q.campaign.ID, contact.ID, attempt+1, q.cfg.MaxSendRetries+1, err)
	}

	return lastErr
}

// persistResult writes the contact outcome and the campaign cursor in one
// transaction so a crash never splits them. Resume correctness depends on
// this: the cursor and the contact statuses always agree.
func (q *QueueManager) persistResult(ctx context.Context, contact *models.CampaignContact, sendErr error) error {
	now := utils.UTCNow()
	sent := sendErr == nil

	// Stage the changes on copies; the shared structs only take them once
	// the transaction commits, so a failed commit leaves memory and store
	// agreeing that nothing happened
	updated := *contact
	updated.UpdatedAt = now
	progressed := *q.campaign
	progressed.CurrentIndex++
	if sent {
		updated.Status = models.ContactStatusSent
		progressed.SentCount++
	} else {
		updated.Status = models.ContactStatusFailed
		progressed.FailedCount++
	}

	err := q.txm.Do(ctx, func(txCtx context.Context) error {
		if err := q.contRepo.Update(txCtx, &updated); err != nil {
			return err
		}
		if err := q.campRepo.Update(txCtx, &progressed); err != nil {
			return err
		}
		if !sent {
			se := ClassifySendError(sendErr)
			return q.errRepo.Save(txCtx, &models.CampaignErrorLog{
				CampaignID: q.campaign.ID,
				ContactID:  contact.ID,
				ErrorType:  se.Type,
				Message:    se.Message,
				RetryCount: updated.RetryCount,
				CreatedAt:  now,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	*contact = updated
	*q.campaign = progressed
	if sent {
		sendsTotal.WithLabelValues("sent").Inc()
	} else {
		sendsTotal.WithLabelValues("failed").Inc()
	}
	return nil
}

// humanizedDelay sleeps a random duration in [DelayMin, DelayMax] seconds
// between contacts
func (q *QueueManager) humanizedDelay(ctx context.Context) (QueueOutcome, bool) {
	min, max := q.campaign.DelayMin, q.campaign.DelayMax
	if max < min {
		max = min
	}
	delay := time.Duration(min) * time.Second
	if max > min {
		delay += time.Duration(q.rng.Int63n(int64(max-min+1))) * time.Second
	}
	return q.sleep(ctx, delay)
}

// sleep waits for d, returning early with the appropriate outcome when a
// stop request, lost lock, or context cancellation arrives
func (q *QueueManager) sleep(ctx context.Context, d time.Duration) (QueueOutcome, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return OutcomeStopped, true
	case <-q.lockLost:
		return OutcomeFailed, true
	case reason := <-q.stopCh:
		q.stopped = &reason
		return outcomeFor(reason), true
	case <-timer.C:
		return "", false
	}
}

// refreshLock keeps the processing lock alive for the duration of the run.
// Losing the refresh race means another worker reclaimed the campaign, so
// the loop must stop mutating it.
func (q *QueueManager) refreshLock(ctx context.Context) {
	interval := q.cfg.LockTTL / 3
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.lock.Refresh(ctx, q.campaign.ID, q.token); err != nil {
				if errors.Is(err, ErrNotLockOwner) {
					q.logger.Printf("🔒 campaign %d: processing lock lost, stopping loop", q.campaign.ID)
					close(q.lockLost)
					return
				}
				q.logger.Printf("⚠️ campaign %d: lock refresh error: %v", q.campaign.ID, err)
				continue
			}
			// The row timestamp is the liveness signal other instances check
			// for staleness, so it must keep advancing while the loop runs
			if err := q.campRepo.SetLock(ctx, q.campaign.ID, q.token, utils.UTCNow()); err != nil {
				if errors.Is(err, repository.ErrLockNotHeld) {
					q.logger.Printf("🔒 campaign %d: row lock taken over, stopping loop", q.campaign.ID)
					close(q.lockLost)
					return
				}
				q.logger.Printf("⚠️ campaign %d: row lock heartbeat error: %v", q.campaign.ID, err)
			}
		}
	}
}

// lockWasLost reports whether the refresh goroutine saw another worker take
// the lock
func (q *QueueManager) lockWasLost() bool {
	select {
	case <-q.lockLost:
		return true
	default:
		return false
	}
}

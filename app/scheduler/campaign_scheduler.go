package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/config"
	"github.com/HeltonFraga01/cortexx-engine/models"
	"github.com/HeltonFraga01/cortexx-engine/repository"
	"github.com/HeltonFraga01/cortexx-engine/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrInvalidTransition means the campaign's current status does not permit
// the requested lifecycle action
var ErrInvalidTransition = errors.New("campaign status does not permit this transition")

// CampaignScheduler owns the campaign lifecycle: it starts, pauses, resumes
// and cancels send loops, arbitrates the processing lock, and recovers
// campaigns wedged by crashed workers. The database row is the source of
// truth; the in-memory registry only tracks loops alive in this process.
type CampaignScheduler struct {
	campRepo repository.CampaignRepository
	contRepo repository.CampaignContactRepository
	audRepo  repository.CampaignAuditLogRepository
	errRepo  repository.CampaignErrorLogRepository
	txm      repository.TxManager

	lock    ProcessingLock
	gateway GatewayClient
	quota   QuotaClient
	cfg     config.EngineConfig
	logCfg  config.LoggingConfig

	owner   string
	logger  *log.Logger
	baseCtx context.Context

	mu      sync.Mutex
	workers map[uint]*campaignWorker
	wg      sync.WaitGroup
}

type campaignWorker struct {
	queue *QueueManager
	token string
	done  chan struct{}
}

// NewCampaignScheduler creates the delivery engine. owner identifies this
// process instance in lock tokens and reclamation audit entries.
func NewCampaignScheduler(
	campRepo repository.CampaignRepository,
	contRepo repository.CampaignContactRepository,
	audRepo repository.CampaignAuditLogRepository,
	errRepo repository.CampaignErrorLogRepository,
	txm repository.TxManager,
	lock ProcessingLock,
	gateway GatewayClient,
	quota QuotaClient,
	cfg config.EngineConfig,
	logCfg config.LoggingConfig,
	owner string,
) *CampaignScheduler {
	s := &CampaignScheduler{
		campRepo: campRepo,
		contRepo: contRepo,
		audRepo:  audRepo,
		errRepo:  errRepo,
		txm:      txm,
		lock:     lock,
		gateway:  gateway,
		quota:    quota,
		cfg:      cfg,
		logCfg:   logCfg,
		owner:    owner,
		baseCtx:  context.Background(),
		workers:  make(map[uint]*campaignWorker),
	}
	s.initLogger()
	return s
}

// initLogger writes to stdout and a rotated file so send history survives
// restarts
func (s *CampaignScheduler) initLogger() {
	dir := s.logCfg.Dir
	if dir == "" {
		dir = "data"
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "engine.log"),
		MaxSize:    s.logCfg.MaxSizeMB,
		MaxBackups: s.logCfg.MaxBackups,
		MaxAge:     s.logCfg.MaxAgeDays,
		Compress:   s.logCfg.Compress,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	s.logger = log.New(mw, "engine ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start begins delivery for a draft or scheduled campaign
func (s *CampaignScheduler) Start(ctx context.Context, campaignID uint, actor string) error {
	campaign, err := s.campRepo.ByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return fmt.Errorf("campaign %d not found", campaignID)
	}
	if !campaign.IsStartable() {
		return fmt.Errorf("%w: cannot start campaign in status %s", ErrInvalidTransition, campaign.Status)
	}

	return s.launch(ctx, campaign, actor, models.AuditActionCampaignStarted)
}

// Resume continues a paused campaign from its persisted cursor
func (s *CampaignScheduler) Resume(ctx context.Context, campaignID uint, actor string) error {
	campaign, err := s.campRepo.ByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return fmt.Errorf("campaign %d not found", campaignID)
	}
	if campaign.Status != models.CampaignStatusPaused {
		return fmt.Errorf("%w: cannot resume campaign in status %s", ErrInvalidTransition, campaign.Status)
	}

	return s.launch(ctx, campaign, actor, models.AuditActionCampaignResumed)
}

// launch acquires the processing lock, marks the campaign running, and
// spawns its send loop. Progress is rebuilt from the store on every launch:
// the pending contact list, not any in-memory state, defines what remains.
func (s *CampaignScheduler) launch(ctx context.Context, campaign *models.Campaign, actor, action string) error {
	token, err := s.acquireLock(ctx, campaign)
	if err != nil {
		return err
	}

	now := utils.UTCNow()
	if err := s.campRepo.SetLock(ctx, campaign.ID, token, now); err != nil {
		_ = s.lock.Release(ctx, campaign.ID, token)
		return fmt.Errorf("record lock on campaign %d: %w", campaign.ID, err)
	}

	campaign.Status = models.CampaignStatusRunning
	campaign.ProcessingLock = &token
	campaign.LockAcquiredAt = &now
	campaign.PausedAt = nil
	if err := s.campRepo.Update(ctx, campaign); err != nil {
		_ = s.campRepo.ClearLock(ctx, campaign.ID, token)
		_ = s.lock.Release(ctx, campaign.ID, token)
		return fmt.Errorf("mark campaign %d running: %w", campaign.ID, err)
	}
	s.audit(ctx, campaign.ID, action, actor, nil)

	pending, err := s.contRepo.ListPending(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("load pending contacts for campaign %d: %w", campaign.ID, err)
	}
	if len(pending) == 0 {
		s.finalize(campaign, token, OutcomeCompleted, false, nil)
		return nil
	}

	loc, err := time.LoadLocation(campaign.Timezone)
	if err != nil {
		loc = time.UTC
	}

	queue := NewQueueManager(campaign, pending, loc,
		s.gateway, s.quota, s.lock, token,
		s.txm, s.campRepo, s.contRepo, s.errRepo, s.cfg, s.logger)

	worker := &campaignWorker{queue: queue, token: token, done: make(chan struct{})}
	s.mu.Lock()
	s.workers[campaign.ID] = worker
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runWorker(campaign, worker)

	s.logger.Printf("🚀 campaign %d: delivery started by %s (%d pending of %d)",
		campaign.ID, actor, len(pending), campaign.TotalContacts)
	return nil
}

// acquireLock takes the campaign lock, reclaiming it when the row shows a
// stale holder from a crashed worker
func (s *CampaignScheduler) acquireLock(ctx context.Context, campaign *models.Campaign) (string, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.LockAcquireTimeout)
	defer cancel()

	token, err := s.lock.Acquire(acquireCtx, campaign.ID, s.owner)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, ErrLockHeld) {
		return "", err
	}

	if !IsLockStale(campaign.LockAcquiredAt, utils.UTCNow(), s.cfg.LockStaleAfter) {
		return "", ErrLockHeld
	}

	token, err = s.lock.Steal(acquireCtx, campaign.ID, s.owner)
	if err != nil {
		return "", err
	}
	// The row still mirrors the dead worker's token; clear it so SetLock
	// can record the new holder
	if campaign.ProcessingLock != nil {
		if err := s.campRepo.ClearLock(ctx, campaign.ID, *campaign.ProcessingLock); err != nil && !errors.Is(err, repository.ErrLockNotHeld) {
			_ = s.lock.Release(ctx, campaign.ID, token)
			return "", fmt.Errorf("clear stale lock on campaign %d: %w", campaign.ID, err)
		}
	}
	details := fmt.Sprintf("stale lock reclaimed from %s", derefOr(campaign.ProcessingLock, "unknown"))
	s.audit(ctx, campaign.ID, models.AuditActionLockReclaimed, s.owner, &details)
	s.logger.Printf("🔓 campaign %d: reclaimed stale lock (held since %v)",
		campaign.ID, campaign.LockAcquiredAt)
	return token, nil
}

// runWorker waits for the send loop to end and records its terminal state
func (s *CampaignScheduler) runWorker(campaign *models.Campaign, worker *campaignWorker) {
	defer s.wg.Done()
	defer close(worker.done)

	outcome, runErr := worker.queue.Run(s.baseCtx)

	s.mu.Lock()
	delete(s.workers, campaign.ID)
	s.mu.Unlock()

	s.finalize(campaign, worker.token, outcome, worker.queue.lockWasLost(), runErr)
}

// finalize maps a queue outcome onto the campaign row and releases the lock.
// A shutdown stop leaves the campaign paused so the next process resumes it.
// Writes go through the token-guarded lock columns and a status-only update;
// counters are already durable from the per-contact transactions.
func (s *CampaignScheduler) finalize(campaign *models.Campaign, token string, outcome QueueOutcome, lockLost bool, runErr error) {
	// Worker teardown must not be cut short by the caller's request context
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if lockLost {
		// Another worker reclaimed the campaign; its row belongs to the new
		// holder now, so only our own token may be scrubbed
		if err := s.campRepo.ClearLock(ctx, campaign.ID, token); err != nil && !errors.Is(err, repository.ErrLockNotHeld) {
			s.logger.Printf("⚠️ campaign %d: lock column cleanup failed: %v", campaign.ID, err)
		}
		s.logger.Printf("🔒 campaign %d: worker dethroned, row left to the new lock holder", campaign.ID)
		return
	}

	var status models.CampaignStatus
	var action string
	switch outcome {
	case OutcomeCompleted:
		status, action = models.CampaignStatusCompleted, models.AuditActionCampaignCompleted
	case OutcomeCancelled:
		status, action = models.CampaignStatusCancelled, models.AuditActionCampaignCancelled
	case OutcomeFailed:
		status, action = models.CampaignStatusFailed, models.AuditActionCampaignFailed
	default:
		status, action = models.CampaignStatusPaused, models.AuditActionCampaignPaused
	}

	var statusErr error
	if status == models.CampaignStatusPaused {
		statusErr = s.campRepo.MarkPaused(ctx, campaign.ID, utils.UTCNow())
	} else {
		statusErr = s.campRepo.UpdateStatus(ctx, campaign.ID, status)
	}
	if statusErr != nil {
		s.logger.Printf("❌ campaign %d: failed to record terminal status %s: %v", campaign.ID, status, statusErr)
	}
	if err := s.campRepo.ClearLock(ctx, campaign.ID, token); err != nil && !errors.Is(err, repository.ErrLockNotHeld) {
		s.logger.Printf("⚠️ campaign %d: lock column clear failed: %v", campaign.ID, err)
	}
	if err := s.lock.Release(ctx, campaign.ID, token); err != nil && !errors.Is(err, ErrNotLockOwner) {
		s.logger.Printf("⚠️ campaign %d: lock release failed: %v", campaign.ID, err)
	}

	var details *string
	if runErr != nil {
		msg := runErr.Error()
		details = &msg
	}
	s.audit(ctx, campaign.ID, action, s.owner, details)
	s.logger.Printf("🏁 campaign %d: ended %s (sent=%d failed=%d pending=%d)",
		campaign.ID, status, campaign.SentCount, campaign.FailedCount, campaign.PendingCount())
}

// Pause stops a running campaign before its next send. When the loop lives
// in another process, pausing is only permitted once that worker's lock has
// gone stale; a live foreign worker keeps exclusive control.
func (s *CampaignScheduler) Pause(ctx context.Context, campaignID uint, actor string) error {
	return s.interrupt(ctx, campaignID, actor, StopReasonPause)
}

// Cancel permanently stops a campaign. Draft, scheduled and paused
// campaigns cancel directly; running ones are interrupted like a pause.
func (s *CampaignScheduler) Cancel(ctx context.Context, campaignID uint, actor string) error {
	campaign, err := s.campRepo.ByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return fmt.Errorf("campaign %d not found", campaignID)
	}

	if campaign.Status != models.CampaignStatusRunning {
		if !campaign.CanTransitionTo(models.CampaignStatusCancelled) {
			return fmt.Errorf("%w: cannot cancel campaign in status %s", ErrInvalidTransition, campaign.Status)
		}
		campaign.Status = models.CampaignStatusCancelled
		if err := s.campRepo.Update(ctx, campaign); err != nil {
			return err
		}
		s.audit(ctx, campaign.ID, models.AuditActionCampaignCancelled, actor, nil)
		return nil
	}

	return s.interrupt(ctx, campaignID, actor, StopReasonCancel)
}

// interrupt delivers a stop request to the campaign's worker
func (s *CampaignScheduler) interrupt(ctx context.Context, campaignID uint, actor string, reason StopReason) error {
	s.mu.Lock()
	worker, local := s.workers[campaignID]
	s.mu.Unlock()

	if local {
		worker.queue.Stop(reason)
		select {
		case <-worker.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	campaign, err := s.campRepo.ByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return fmt.Errorf("campaign %d not found", campaignID)
	}
	if campaign.Status != models.CampaignStatusRunning {
		return fmt.Errorf("%w: campaign is %s, not running", ErrInvalidTransition, campaign.Status)
	}

	// A running row without a local worker either belongs to another live
	// process or to a crashed one. Only the crashed case may be overridden.
	if !IsLockStale(campaign.LockAcquiredAt, utils.UTCNow(), s.cfg.LockStaleAfter) {
		return ErrLockHeld
	}

	status := models.CampaignStatusPaused
	action := models.AuditActionCampaignPaused
	if reason == StopReasonCancel {
		status = models.CampaignStatusCancelled
		action = models.AuditActionCampaignCancelled
	}
	campaign.Status = status
	campaign.ProcessingLock = nil
	campaign.LockAcquiredAt = nil
	if status == models.CampaignStatusPaused {
		now := utils.UTCNow()
		campaign.PausedAt = &now
	}
	if err := s.campRepo.Update(ctx, campaign); err != nil {
		return err
	}
	details := "worker lock was stale, status forced from another instance"
	s.audit(ctx, campaign.ID, models.AuditActionLockReclaimed, actor, &details)
	s.audit(ctx, campaign.ID, action, actor, nil)
	return nil
}

// RecoverStale sweeps running campaigns whose lock outlived the staleness
// threshold and parks them as paused. Called once at startup so campaigns
// orphaned by a crash become resumable.
func (s *CampaignScheduler) RecoverStale(ctx context.Context) error {
	running := models.CampaignStatusRunning
	campaigns, err := s.campRepo.ByFilter(ctx, models.CampaignFilter{Status: &running}, "id ASC", 0, 0)
	if err != nil {
		return fmt.Errorf("list running campaigns: %w", err)
	}

	now := utils.UTCNow()
	recovered := 0
	for _, campaign := range campaigns {
		s.mu.Lock()
		_, local := s.workers[campaign.ID]
		s.mu.Unlock()
		if local || !IsLockStale(campaign.LockAcquiredAt, now, s.cfg.LockStaleAfter) {
			continue
		}

		campaign.Status = models.CampaignStatusPaused
		campaign.ProcessingLock = nil
		campaign.LockAcquiredAt = nil
		pausedAt := now
		campaign.PausedAt = &pausedAt
		if err := s.campRepo.Update(ctx, campaign); err != nil {
			s.logger.Printf("❌ recovery: failed to park campaign %d: %v", campaign.ID, err)
			continue
		}
		details := "stale lock detected at startup, campaign parked for resume"
		s.audit(ctx, campaign.ID, models.AuditActionLockReclaimed, s.owner, &details)
		recovered++
	}

	if recovered > 0 {
		s.logger.Printf("🔧 recovery: parked %d stale campaigns as paused", recovered)
	}
	return nil
}

// Shutdown pauses every local worker and waits for their loops to drain
func (s *CampaignScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, worker := range s.workers {
		worker.queue.Stop(StopReasonPause)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Printf("🛑 engine shut down, all workers drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunningLocally reports whether this process hosts the campaign's worker
func (s *CampaignScheduler) IsRunningLocally(campaignID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[campaignID]
	return ok
}

// audit records a lifecycle action; audit failures are logged, never fatal
func (s *CampaignScheduler) audit(ctx context.Context, campaignID uint, action, actor string, details *string) {
	entry := &models.CampaignAuditLog{
		CampaignID: campaignID,
		Action:     action,
		Actor:      &actor,
		Details:    details,
		Success:    utils.ToPtr(true),
		CreatedAt:  utils.UTCNow(),
	}
	if err := s.audRepo.Save(ctx, entry); err != nil {
		s.logger.Printf("⚠️ campaign %d: audit write failed for %s: %v", campaignID, action, err)
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

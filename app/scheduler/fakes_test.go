package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/models"
	"github.com/HeltonFraga01/cortexx-engine/repository"
	"github.com/google/uuid"
)

// In-memory doubles for the repository and transport interfaces. They keep
// the same contracts as the real implementations so the engine logic can be
// exercised without Postgres or Redis.

type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uint]*models.Campaign
	nextID    uint
	failOn    string
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: make(map[uint]*models.Campaign), nextID: 1}
}

func cloneCampaign(c *models.Campaign) *models.Campaign {
	cp := *c
	if c.ProcessingLock != nil {
		v := *c.ProcessingLock
		cp.ProcessingLock = &v
	}
	if c.LockAcquiredAt != nil {
		v := *c.LockAcquiredAt
		cp.LockAcquiredAt = &v
	}
	if c.PausedAt != nil {
		v := *c.PausedAt
		cp.PausedAt = &v
	}
	return &cp
}

func (r *memCampaignRepo) put(c *models.Campaign) *models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	r.campaigns[c.ID] = cloneCampaign(c)
	return c
}

func (r *memCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	return cloneCampaign(c), nil
}

func (r *memCampaignRepo) ByUUID(ctx context.Context, u string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.UUID.String() == u {
			return cloneCampaign(c), nil
		}
	}
	return nil, nil
}

func (r *memCampaignRepo) ByUserID(ctx context.Context, userID uint, limit, offset int) ([]*models.Campaign, error) {
	userFilter := models.CampaignFilter{UserID: &userID}
	return r.ByFilter(ctx, userFilter, "created_at DESC", limit, offset)
}

func (r *memCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if filter.UserID != nil && c.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, cloneCampaign(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCampaignRepo) Save(ctx context.Context, c *models.Campaign) error {
	if r.failOn == "save" {
		return fmt.Errorf("simulated save failure")
	}
	r.put(c)
	return nil
}

func (r *memCampaignRepo) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		r.put(c)
	}
	return nil
}

func (r *memCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	list, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), nil
}

func (r *memCampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	if r.failOn == "update" {
		return fmt.Errorf("simulated update failure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (r *memCampaignRepo) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *memCampaignRepo) MarkPaused(ctx context.Context, id uint, pausedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.Status = models.CampaignStatusPaused
		at := pausedAt
		c.PausedAt = &at
	}
	return nil
}

func (r *memCampaignRepo) SetLock(ctx context.Context, id uint, token string, acquiredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return repository.ErrLockNotHeld
	}
	if c.ProcessingLock != nil && *c.ProcessingLock != token {
		return repository.ErrLockNotHeld
	}
	c.ProcessingLock = &token
	c.LockAcquiredAt = &acquiredAt
	return nil
}

func (r *memCampaignRepo) ClearLock(ctx context.Context, id uint, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.ProcessingLock == nil || *c.ProcessingLock != token {
		return repository.ErrLockNotHeld
	}
	c.ProcessingLock = nil
	c.LockAcquiredAt = nil
	return nil
}

type memContactRepo struct {
	mu       sync.Mutex
	contacts map[uint]*models.CampaignContact
	nextID   uint
	failOn   string
}

func newMemContactRepo() *memContactRepo {
	return &memContactRepo{contacts: make(map[uint]*models.CampaignContact), nextID: 1}
}

func (r *memContactRepo) put(c *models.CampaignContact) *models.CampaignContact {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	cp := *c
	r.contacts[c.ID] = &cp
	return c
}

func (r *memContactRepo) ByID(ctx context.Context, id uint) (*models.CampaignContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memContactRepo) ByFilter(ctx context.Context, filter models.CampaignContactFilter, orderBy string, limit, offset int) ([]*models.CampaignContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignContact
	for _, c := range r.contacts {
		if filter.CampaignID != nil && c.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.Phone != nil && c.Phone != *filter.Phone {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memContactRepo) Save(ctx context.Context, c *models.CampaignContact) error {
	r.put(c)
	return nil
}

func (r *memContactRepo) SaveBatch(ctx context.Context, cs []*models.CampaignContact) error {
	for _, c := range cs {
		r.put(c)
	}
	return nil
}

func (r *memContactRepo) Count(ctx context.Context, filter models.CampaignContactFilter) (int64, error) {
	list, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), nil
}

func (r *memContactRepo) ListPending(ctx context.Context, campaignID uint) ([]*models.CampaignContact, error) {
	pending := models.ContactStatusPending
	return r.ByFilter(ctx, models.CampaignContactFilter{
		CampaignID: &campaignID,
		Status:     &pending,
	}, "ordinal ASC", 0, 0)
}

func (r *memContactRepo) Update(ctx context.Context, c *models.CampaignContact) error {
	if r.failOn == "update" {
		return fmt.Errorf("simulated update failure")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *memContactRepo) CountByStatus(ctx context.Context, campaignID uint) (map[models.ContactStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[models.ContactStatus]int64)
	for _, c := range r.contacts {
		if c.CampaignID == campaignID {
			out[c.Status]++
		}
	}
	return out, nil
}

func (r *memContactRepo) UpdateReceipt(ctx context.Context, campaignID uint, phone string, status models.ContactStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.CampaignID != campaignID || c.Phone != phone {
			continue
		}
		switch status {
		case models.ContactStatusDelivered:
			if c.Status == models.ContactStatusSent {
				c.Status = status
				c.DeliveredAt = &at
			}
		case models.ContactStatusRead:
			if c.Status == models.ContactStatusSent || c.Status == models.ContactStatusDelivered {
				c.Status = status
				c.ReadAt = &at
			}
		}
	}
	return nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*models.CampaignAuditLog
}

func (r *memAuditRepo) ByID(ctx context.Context, id uint) (*models.CampaignAuditLog, error) {
	return nil, nil
}

func (r *memAuditRepo) ByFilter(ctx context.Context, filter models.CampaignAuditLogFilter, orderBy string, limit, offset int) ([]*models.CampaignAuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignAuditLog
	for _, e := range r.entries {
		if filter.CampaignID != nil && e.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memAuditRepo) Save(ctx context.Context, e *models.CampaignAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memAuditRepo) SaveBatch(ctx context.Context, es []*models.CampaignAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, es...)
	return nil
}

func (r *memAuditRepo) Count(ctx context.Context, filter models.CampaignAuditLogFilter) (int64, error) {
	list, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), nil
}

func (r *memAuditRepo) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignAuditLog, error) {
	return r.ByFilter(ctx, models.CampaignAuditLogFilter{CampaignID: &campaignID}, "", limit, offset)
}

func (r *memAuditRepo) actions(campaignID uint) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.CampaignID == campaignID {
			out = append(out, e.Action)
		}
	}
	return out
}

type memErrorRepo struct {
	mu      sync.Mutex
	entries []*models.CampaignErrorLog
}

func (r *memErrorRepo) ByID(ctx context.Context, id uint) (*models.CampaignErrorLog, error) {
	return nil, nil
}

func (r *memErrorRepo) ByFilter(ctx context.Context, filter models.CampaignErrorLogFilter, orderBy string, limit, offset int) ([]*models.CampaignErrorLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignErrorLog
	for _, e := range r.entries {
		if filter.CampaignID != nil && e.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.ContactID != nil && e.ContactID != *filter.ContactID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memErrorRepo) Save(ctx context.Context, e *models.CampaignErrorLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memErrorRepo) SaveBatch(ctx context.Context, es []*models.CampaignErrorLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, es...)
	return nil
}

func (r *memErrorRepo) Count(ctx context.Context, filter models.CampaignErrorLogFilter) (int64, error) {
	list, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), nil
}

func (r *memErrorRepo) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignErrorLog, error) {
	return r.ByFilter(ctx, models.CampaignErrorLogFilter{CampaignID: &campaignID}, "", limit, offset)
}

func (r *memErrorRepo) ListByContact(ctx context.Context, contactID uint, limit, offset int) ([]*models.CampaignErrorLog, error) {
	return r.ByFilter(ctx, models.CampaignErrorLogFilter{ContactID: &contactID}, "", limit, offset)
}

// passthroughTxManager runs the function directly; the in-memory repos have
// no transactional semantics to coordinate
type passthroughTxManager struct{}

func (passthroughTxManager) Do(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// memLock is an in-process ProcessingLock with SET NX semantics
type memLock struct {
	mu     sync.Mutex
	tokens map[uint]string
	seq    int
}

func newMemLock() *memLock {
	return &memLock{tokens: make(map[uint]string)}
}

func (l *memLock) Acquire(ctx context.Context, campaignID uint, owner string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.tokens[campaignID]; held {
		return "", ErrLockHeld
	}
	l.seq++
	token := fmt.Sprintf("%s:%d", owner, l.seq)
	l.tokens[campaignID] = token
	return token, nil
}

func (l *memLock) Steal(ctx context.Context, campaignID uint, owner string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	token := fmt.Sprintf("%s:%d", owner, l.seq)
	l.tokens[campaignID] = token
	return token, nil
}

func (l *memLock) Release(ctx context.Context, campaignID uint, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tokens[campaignID] != token {
		return ErrNotLockOwner
	}
	delete(l.tokens, campaignID)
	return nil
}

func (l *memLock) Refresh(ctx context.Context, campaignID uint, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tokens[campaignID] != token {
		return ErrNotLockOwner
	}
	return nil
}

// scriptedGateway returns errors per phone number, then succeeds
type scriptedGateway struct {
	mu    sync.Mutex
	fails map[string][]error
	sent  []string
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{fails: make(map[string][]error)}
}

func (g *scriptedGateway) failWith(phone string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fails[phone] = append(g.fails[phone], errs...)
}

func (g *scriptedGateway) Send(ctx context.Context, phone string, messages []OutboundMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if queue := g.fails[phone]; len(queue) > 0 {
		err := queue[0]
		g.fails[phone] = queue[1:]
		return err
	}
	g.sent = append(g.sent, phone)
	return nil
}

func (g *scriptedGateway) sentPhones() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.sent))
	copy(out, g.sent)
	return out
}

// stubQuota denies the first n checks, then always allows
type stubQuota struct {
	mu     sync.Mutex
	denies int
	calls  int
}

func (q *stubQuota) CheckAndConsume(ctx context.Context, userID uint, units int) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.denies > 0 {
		q.denies--
		return false, nil
	}
	return true, nil
}

package businessflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/models"
	"github.com/google/uuid"
)

// In-memory repository doubles so the flow logic can be exercised without a
// database. Only the behavior the flow depends on is modeled.

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uint]*models.Campaign
	nextID    uint
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[uint]*models.Campaign), nextID: 1}
}

func (r *fakeCampaignRepo) put(c *models.Campaign) *models.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	cp := *c
	r.campaigns[c.ID] = &cp
	return c
}

func (r *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByUUID(ctx context.Context, u string) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.UUID.String() == u {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByUserID(ctx context.Context, userID uint, limit, offset int) ([]*models.Campaign, error) {
	return r.ByFilter(ctx, models.CampaignFilter{UserID: &userID}, "created_at DESC", limit, offset)
}

func (r *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
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
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, c *models.Campaign) error {
	r.put(c)
	return nil
}

func (r *fakeCampaignRepo) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		r.put(c)
	}
	return nil
}

func (r *fakeCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	list, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), nil
}

func (r *fakeCampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeCampaignRepo) MarkPaused(ctx context.Context, id uint, pausedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.Status = models.CampaignStatusPaused
		at := pausedAt
		c.PausedAt = &at
	}
	return nil
}

func (r *fakeCampaignRepo) SetLock(ctx context.Context, id uint, token string, acquiredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.ProcessingLock = &token
		c.LockAcquiredAt = &acquiredAt
	}
	return nil
}

func (r *fakeCampaignRepo) ClearLock(ctx context.Context, id uint, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.campaigns[id]; ok {
		c.ProcessingLock = nil
		c.LockAcquiredAt = nil
	}
	return nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[uint]*models.CampaignContact
	nextID   uint
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[uint]*models.CampaignContact), nextID: 1}
}

func (r *fakeContactRepo) put(c *models.CampaignContact) *models.CampaignContact {
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

func (r *fakeContactRepo) ByID(ctx context.Context, id uint) (*models.CampaignContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contacts[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeContactRepo) ByFilter(ctx context.Context, filter models.CampaignContactFilter, orderBy string, limit, offset int) ([]*models.CampaignContact, error) {
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

func (r *fakeContactRepo) Save(ctx context.Context, c *models.CampaignContact) error {
	r.put(c)
	return nil
}

func (r *fakeContactRepo) SaveBatch(ctx context.Context, cs []*models.CampaignContact) error {
	for _, c := range cs {
		r.put(c)
	}
	return nil
}

func (r *fakeContactRepo) Count(ctx context.Context, filter models.CampaignContactFilter) (int64, error) {
	list, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), nil
}

func (r *fakeContactRepo) ListPending(ctx context.Context, campaignID uint) ([]*models.CampaignContact, error) {
	pending := models.ContactStatusPending
	return r.ByFilter(ctx, models.CampaignContactFilter{CampaignID: &campaignID, Status: &pending}, "ordinal ASC", 0, 0)
}

func (r *fakeContactRepo) Update(ctx context.Context, c *models.CampaignContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *fakeContactRepo) CountByStatus(ctx context.Context, campaignID uint) (map[models.ContactStatus]int64, error) {
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

func (r *fakeContactRepo) UpdateReceipt(ctx context.Context, campaignID uint, phone string, status models.ContactStatus, at time.Time) error {
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

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.CampaignAuditLog
}

func (r *fakeAuditRepo) ByID(ctx context.Context, id uint) (*models.CampaignAuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) ByFilter(ctx context.Context, filter models.CampaignAuditLogFilter, orderBy string, limit, offset int) ([]*models.CampaignAuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignAuditLog
	for _, e := range r.entries {
		if filter.CampaignID != nil && e.CampaignID != *filter.CampaignID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeAuditRepo) Save(ctx context.Context, e *models.CampaignAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeAuditRepo) SaveBatch(ctx context.Context, es []*models.CampaignAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, es...)
	return nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter models.CampaignAuditLogFilter) (int64, error) {
	list, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), nil
}

func (r *fakeAuditRepo) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignAuditLog, error) {
	return r.ByFilter(ctx, models.CampaignAuditLogFilter{CampaignID: &campaignID}, "", limit, offset)
}

type fakeErrorRepo struct {
	mu      sync.Mutex
	entries []*models.CampaignErrorLog
}

func (r *fakeErrorRepo) ByID(ctx context.Context, id uint) (*models.CampaignErrorLog, error) {
	return nil, nil
}

func (r *fakeErrorRepo) ByFilter(ctx context.Context, filter models.CampaignErrorLogFilter, orderBy string, limit, offset int) ([]*models.CampaignErrorLog, error) {
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

func (r *fakeErrorRepo) Save(ctx context.Context, e *models.CampaignErrorLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeErrorRepo) SaveBatch(ctx context.Context, es []*models.CampaignErrorLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, es...)
	return nil
}

func (r *fakeErrorRepo) Count(ctx context.Context, filter models.CampaignErrorLogFilter) (int64, error) {
	list, _ := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(list)), nil
}

func (r *fakeErrorRepo) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignErrorLog, error) {
	return r.ByFilter(ctx, models.CampaignErrorLogFilter{CampaignID: &campaignID}, "", limit, offset)
}

func (r *fakeErrorRepo) ListByContact(ctx context.Context, contactID uint, limit, offset int) ([]*models.CampaignErrorLog, error) {
	return r.ByFilter(ctx, models.CampaignErrorLogFilter{ContactID: &contactID}, "", limit, offset)
}

type directTxManager struct{}

func (directTxManager) Do(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// stubEngine records lifecycle calls and returns a scripted error
type stubEngine struct {
	mu    sync.Mutex
	calls []string
	err   error
	repo  *fakeCampaignRepo
	// status to apply on success, simulating the real engine's transition
	apply map[string]models.CampaignStatus
}

func newStubEngine(repo *fakeCampaignRepo) *stubEngine {
	return &stubEngine{
		repo: repo,
		apply: map[string]models.CampaignStatus{
			"start":  models.CampaignStatusRunning,
			"pause":  models.CampaignStatusPaused,
			"resume": models.CampaignStatusRunning,
			"cancel": models.CampaignStatusCancelled,
		},
	}
}

func (e *stubEngine) record(ctx context.Context, name string, campaignID uint) error {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if status, ok := e.apply[name]; ok {
		_ = e.repo.UpdateStatus(ctx, campaignID, status)
	}
	return nil
}

func (e *stubEngine) Start(ctx context.Context, campaignID uint, actor string) error {
	return e.record(ctx, "start", campaignID)
}

func (e *stubEngine) Pause(ctx context.Context, campaignID uint, actor string) error {
	return e.record(ctx, "pause", campaignID)
}

func (e *stubEngine) Resume(ctx context.Context, campaignID uint, actor string) error {
	return e.record(ctx, "resume", campaignID)
}

func (e *stubEngine) Cancel(ctx context.Context, campaignID uint, actor string) error {
	return e.record(ctx, "cancel", campaignID)
}

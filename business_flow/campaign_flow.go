package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/app/dto"
	"github.com/HeltonFraga01/cortexx-engine/app/scheduler"
	"github.com/HeltonFraga01/cortexx-engine/config"
	"github.com/HeltonFraga01/cortexx-engine/models"
	"github.com/HeltonFraga01/cortexx-engine/repository"
	"github.com/HeltonFraga01/cortexx-engine/utils"
)

// CampaignEngine is the slice of the delivery engine the flow drives
type CampaignEngine interface {
	Start(ctx context.Context, campaignID uint, actor string) error
	Pause(ctx context.Context, campaignID uint, actor string) error
	Resume(ctx context.Context, campaignID uint, actor string) error
	Cancel(ctx context.Context, campaignID uint, actor string) error
}

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	StartCampaign(ctx context.Context, req *dto.CampaignActionRequest, metadata *ClientMetadata) (*dto.CampaignActionResponse, error)
	PauseCampaign(ctx context.Context, req *dto.CampaignActionRequest, metadata *ClientMetadata) (*dto.CampaignActionResponse, error)
	ResumeCampaign(ctx context.Context, req *dto.CampaignActionRequest, metadata *ClientMetadata) (*dto.CampaignActionResponse, error)
	CancelCampaign(ctx context.Context, req *dto.CampaignActionRequest, metadata *ClientMetadata) (*dto.CampaignActionResponse, error)
	GetCampaign(ctx context.Context, uuid string, userID uint) (*dto.GetCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	ListAuditLogs(ctx context.Context, uuid string, userID uint, page, limit int) ([]dto.AuditLogEntry, error)
	ListErrorLogs(ctx context.Context, uuid string, userID uint, page, limit int) ([]dto.ErrorLogEntry, error)
	ProcessReceipt(ctx context.Context, req *dto.ReceiptRequest) (*dto.ReceiptResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	contactRepo  repository.CampaignContactRepository
	auditRepo    repository.CampaignAuditLogRepository
	errorRepo    repository.CampaignErrorLogRepository
	txm          repository.TxManager
	engine       CampaignEngine
	engineCfg    config.EngineConfig
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	contactRepo repository.CampaignContactRepository,
	auditRepo repository.CampaignAuditLogRepository,
	errorRepo repository.CampaignErrorLogRepository,
	txm repository.TxManager,
	engine CampaignEngine,
	engineCfg config.EngineConfig,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		auditRepo:    auditRepo,
		errorRepo:    errorRepo,
		txm:          txm,
		engine:       engine,
		engineCfg:    engineCfg,
	}
}

// CreateCampaign validates and persists a new campaign with its contact
// list. The campaign lands in draft (or scheduled) and sends nothing until
// started.
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	sequence, err := f.validateSequence(req.MessageSequence)
	if err != nil {
		return nil, err
	}

	if req.DelayMin < 5 || req.DelayMax > 300 || req.DelayMin > req.DelayMax {
		return nil, fmt.Errorf("%w: delay_min=%d delay_max=%d (range 5..300, min <= max)",
			ErrInvalidDelayRange, req.DelayMin, req.DelayMax)
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}

	var window *models.ScheduleWindow
	if req.Window != nil {
		window = &models.ScheduleWindow{
			StartTime: req.Window.StartTime,
			EndTime:   req.Window.EndTime,
			Weekdays:  req.Window.Weekdays,
		}
		if err := window.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
	}

	contacts, err := f.buildContacts(req.Contacts)
	if err != nil {
		return nil, err
	}

	status := models.CampaignStatusDraft
	if req.Scheduled {
		status = models.CampaignStatusScheduled
	}

	campaign := &models.Campaign{
		UserID:          req.UserID,
		Status:          status,
		MessageSequence: sequence,
		DelayMin:        req.DelayMin,
		DelayMax:        req.DelayMax,
		RandomizeOrder:  req.RandomizeOrder,
		Window:          window,
		Timezone:        timezone,
		TotalContacts:   len(contacts),
		CreatedAt:       utils.UTCNow(),
	}

	err = f.txm.Do(ctx, func(txCtx context.Context) error {
		if err := f.campaignRepo.Save(txCtx, campaign); err != nil {
			return fmt.Errorf("failed to save campaign: %w", err)
		}
		for _, c := range contacts {
			c.CampaignID = campaign.ID
		}
		if err := f.contactRepo.SaveBatch(txCtx, contacts); err != nil {
			return fmt.Errorf("failed to save campaign contacts: %w", err)
		}
		return f.auditRepo.Save(txCtx, &models.CampaignAuditLog{
			CampaignID: campaign.ID,
			Action:     models.AuditActionCampaignCreated,
			Actor:      utils.ToPtr(metadata.Actor(req.UserID)),
			Success:    utils.ToPtr(true),
			CreatedAt:  utils.UTCNow(),
		})
	})
	if err != nil {
		return nil, err
	}

	return &dto.CreateCampaignResponse{
		Message:       "Campaign created successfully",
		UUID:          campaign.UUID.String(),
		Status:        campaign.Status.String(),
		TotalContacts: campaign.TotalContacts,
		CreatedAt:     campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (f *CampaignFlowImpl) validateSequence(templates []dto.MessageTemplateDTO) (models.MessageSequence, error) {
	if len(templates) == 0 {
		return nil, ErrMessageSequenceRequired
	}
	sequence := make(models.MessageSequence, 0, len(templates))
	for i, t := range templates {
		switch t.Kind {
		case "text":
			if t.Body == "" {
				return nil, fmt.Errorf("%w: template %d has empty body", ErrInvalidMessageTemplate, i)
			}
		case "media":
			if t.MediaURL == nil || *t.MediaURL == "" {
				return nil, fmt.Errorf("%w: template %d is media without media_url", ErrInvalidMessageTemplate, i)
			}
		default:
			return nil, fmt.Errorf("%w: template %d has unknown kind %q", ErrInvalidMessageTemplate, i, t.Kind)
		}
		sequence = append(sequence, models.MessageTemplate{
			Kind:     t.Kind,
			Body:     t.Body,
			MediaURL: t.MediaURL,
			Caption:  t.Caption,
		})
	}
	return sequence, nil
}

// buildContacts normalizes phone numbers, drops duplicates keeping the first
// occurrence, and assigns send ordinals
func (f *CampaignFlowImpl) buildContacts(in []dto.CampaignContactDTO) ([]*models.CampaignContact, error) {
	if len(in) == 0 {
		return nil, ErrContactsRequired
	}

	seen := make(map[string]bool, len(in))
	contacts := make([]*models.CampaignContact, 0, len(in))
	for i, c := range in {
		phone, err := utils.NormalizePhone(c.Phone, f.engineCfg.DefaultCountryCode)
		if err != nil {
			return nil, fmt.Errorf("%w: contact %d (%q): %v", ErrInvalidPhone, i, c.Phone, err)
		}
		if seen[phone] {
			continue
		}
		seen[phone] = true

		vars := models.ContactVariables(c.Variables)
		if vars == nil {
			vars = models.ContactVariables{}
		}
		contacts = append(contacts, &models.CampaignContact{
			Phone:     phone,
			Variables: vars,
			Status:    models.ContactStatusPending,
			Ordinal:   len(contacts),
			CreatedAt: utils.UTCNow(),
			UpdatedAt: utils.UTCNow(),
		})
	}
	return contacts, nil
}

// StartCampaign begins delivery for a draft or scheduled campaign
func (f *CampaignFlowImpl) StartCampaign(ctx context.Context, req *dto.CampaignActionRequest, metadata *ClientMetadata) (*dto.CampaignActionResponse, error) {
	return f.lifecycleAction(ctx, req, metadata, f.engine.Start, "Campaign started")
}

// PauseCampaign interrupts a running campaign before its next send
func (f *CampaignFlowImpl) PauseCampaign(ctx context.Context, req *dto.CampaignActionRequest, metadata *ClientMetadata) (*dto.CampaignActionResponse, error) {
	return f.lifecycleAction(ctx, req, metadata, f.engine.Pause, "Campaign paused")
}

// ResumeCampaign continues a paused campaign from its persisted cursor
func (f *CampaignFlowImpl) ResumeCampaign(ctx context.Context, req *dto.CampaignActionRequest, metadata *ClientMetadata) (*dto.CampaignActionResponse, error) {
	return f.lifecycleAction(ctx, req, metadata, f.engine.Resume, "Campaign resumed")
}

// CancelCampaign permanently stops a campaign
func (f *CampaignFlowImpl) CancelCampaign(ctx context.Context, req *dto.CampaignActionRequest, metadata *ClientMetadata) (*dto.CampaignActionResponse, error) {
	return f.lifecycleAction(ctx, req, metadata, f.engine.Cancel, "Campaign cancelled")
}

func (f *CampaignFlowImpl) lifecycleAction(
	ctx context.Context,
	req *dto.CampaignActionRequest,
	metadata *ClientMetadata,
	action func(context.Context, uint, string) error,
	message string,
) (*dto.CampaignActionResponse, error) {
	campaign, err := f.ownedCampaign(ctx, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := action(ctx, campaign.ID, metadata.Actor(req.UserID)); err != nil {
		return nil, mapEngineError(err)
	}

	// Reload so the response reflects the transition the engine just made
	updated, err := f.campaignRepo.ByID(ctx, campaign.ID)
	if err != nil || updated == nil {
		updated = campaign
	}

	return &dto.CampaignActionResponse{
		Message: message,
		UUID:    updated.UUID.String(),
		Status:  updated.Status.String(),
	}, nil
}

// mapEngineError translates engine sentinels into business errors
func mapEngineError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrLockHeld):
		return fmt.Errorf("%w: %v", ErrLockContention, err)
	case errors.Is(err, scheduler.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidCampaignState, err)
	default:
		return err
	}
}

// ownedCampaign loads a campaign by UUID and enforces tenant ownership
func (f *CampaignFlowImpl) ownedCampaign(ctx context.Context, uuidStr string, userID uint) (*models.Campaign, error) {
	if uuidStr == "" {
		return nil, ErrCampaignUUIDRequired
	}
	if _, err := utils.ParseUUID(uuidStr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCampaignUUIDRequired, err)
	}

	campaign, err := f.campaignRepo.ByUUID(ctx, uuidStr)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if campaign.UserID != userID {
		return nil, ErrCampaignAccessDenied
	}
	return campaign, nil
}

// GetCampaign returns a campaign with live delivery progress
func (f *CampaignFlowImpl) GetCampaign(ctx context.Context, uuidStr string, userID uint) (*dto.GetCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, uuidStr, userID)
	if err != nil {
		return nil, err
	}

	counts, err := f.contactRepo.CountByStatus(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count contact statuses: %w", err)
	}

	return toGetCampaignResponse(campaign, counts), nil
}

func toGetCampaignResponse(campaign *models.Campaign, counts map[models.ContactStatus]int64) *dto.GetCampaignResponse {
	sequence := make([]dto.MessageTemplateDTO, 0, len(campaign.MessageSequence))
	for _, t := range campaign.MessageSequence {
		sequence = append(sequence, dto.MessageTemplateDTO{
			Kind:     t.Kind,
			Body:     t.Body,
			MediaURL: t.MediaURL,
			Caption:  t.Caption,
		})
	}

	var window *dto.ScheduleWindowDTO
	if campaign.Window != nil {
		window = &dto.ScheduleWindowDTO{
			StartTime: campaign.Window.StartTime,
			EndTime:   campaign.Window.EndTime,
			Weekdays:  campaign.Window.Weekdays,
		}
	}

	return &dto.GetCampaignResponse{
		UUID:            campaign.UUID.String(),
		Status:          campaign.Status.String(),
		MessageSequence: sequence,
		DelayMin:        campaign.DelayMin,
		DelayMax:        campaign.DelayMax,
		RandomizeOrder:  campaign.RandomizeOrder,
		Window:          window,
		Timezone:        campaign.Timezone,
		TotalContacts:   campaign.TotalContacts,
		SentCount:       campaign.SentCount,
		FailedCount:     campaign.FailedCount,
		PendingCount:    campaign.PendingCount(),
		DeliveredCount:  counts[models.ContactStatusDelivered] + counts[models.ContactStatusRead],
		ReadCount:       counts[models.ContactStatusRead],
		PausedAt:        campaign.PausedAt,
		CreatedAt:       campaign.CreatedAt,
		UpdatedAt:       campaign.UpdatedAt,
	}
}

// ListCampaigns returns the tenant's campaigns, newest first
func (f *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	campaigns, err := f.campaignRepo.ByUserID(ctx, req.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	total, err := f.campaignRepo.Count(ctx, models.CampaignFilter{UserID: &req.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to count campaigns: %w", err)
	}

	items := make([]dto.GetCampaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		counts, err := f.contactRepo.CountByStatus(ctx, campaign.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count contact statuses: %w", err)
		}
		items = append(items, *toGetCampaignResponse(campaign, counts))
	}

	return &dto.ListCampaignsResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

// ListAuditLogs returns the campaign's lifecycle history, newest first
func (f *CampaignFlowImpl) ListAuditLogs(ctx context.Context, uuidStr string, userID uint, page, limit int) ([]dto.AuditLogEntry, error) {
	campaign, err := f.ownedCampaign(ctx, uuidStr, userID)
	if err != nil {
		return nil, err
	}

	limit, offset := normalizePage(page, limit)
	logs, err := f.auditRepo.ListByCampaign(ctx, campaign.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	entries := make([]dto.AuditLogEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, dto.AuditLogEntry{
			Action:       l.Action,
			Actor:        l.Actor,
			Details:      l.Details,
			Success:      !l.IsFailed(),
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		})
	}
	return entries, nil
}

// ListErrorLogs returns per-contact send failures, newest first
func (f *CampaignFlowImpl) ListErrorLogs(ctx context.Context, uuidStr string, userID uint, page, limit int) ([]dto.ErrorLogEntry, error) {
	campaign, err := f.ownedCampaign(ctx, uuidStr, userID)
	if err != nil {
		return nil, err
	}

	limit, offset := normalizePage(page, limit)
	logs, err := f.errorRepo.ListByCampaign(ctx, campaign.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}

	entries := make([]dto.ErrorLogEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, dto.ErrorLogEntry{
			ContactID:  l.ContactID,
			ErrorType:  l.ErrorType.String(),
			Message:    l.Message,
			RetryCount: l.RetryCount,
			CreatedAt:  l.CreatedAt,
		})
	}
	return entries, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return limit, (page - 1) * limit
}

// ProcessReceipt applies a gateway delivery or read receipt to the matching
// contact. Receipts are idempotent and never move a contact backwards: a
// delivered receipt arriving after a read one is silently absorbed.
func (f *CampaignFlowImpl) ProcessReceipt(ctx context.Context, req *dto.ReceiptRequest) (*dto.ReceiptResponse, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, req.CampaignUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	status := models.ContactStatus(req.Status)
	if status != models.ContactStatusDelivered && status != models.ContactStatusRead {
		return nil, ErrInvalidReceiptStatus
	}

	phone, err := utils.NormalizePhone(req.Phone, f.engineCfg.DefaultCountryCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}

	existing, err := f.contactRepo.ByFilter(ctx, models.CampaignContactFilter{
		CampaignID: &campaign.ID,
		Phone:      &phone,
	}, "id ASC", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}
	if len(existing) == 0 {
		return nil, ErrContactNotFound
	}
	if existing[0].Status == models.ContactStatusPending || existing[0].Status == models.ContactStatusFailed {
		return nil, fmt.Errorf("%w: contact is %s", ErrReceiptTransitionDenied, existing[0].Status)
	}

	at := req.Timestamp
	if at.IsZero() {
		at = utils.UTCNow()
	}
	if err := f.contactRepo.UpdateReceipt(ctx, campaign.ID, phone, status, utils.TimeToUTC(at)); err != nil {
		return nil, fmt.Errorf("failed to apply receipt: %w", err)
	}

	return &dto.ReceiptResponse{Message: "Receipt processed"}, nil
}

package handlers

import (
	"context"
	"log"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/app/dto"
	businessflow "github.com/HeltonFraga01/cortexx-engine/business_flow"
	"github.com/HeltonFraga01/cortexx-engine/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	StartCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	ResumeCampaign(c fiber.Ctx) error
	CancelCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	ListAuditLogs(c fiber.Ctx) error
	ListErrorLogs(c fiber.Ctx) error
	ProcessReceipt(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: &dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *CampaignHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}

// userID extracts the authenticated tenant from the request context
func (h *CampaignHandler) userID(c fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("user_id").(uint)
	return id, ok
}

// flowError maps business errors onto HTTP responses
func (h *CampaignHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsCampaignAccessDenied(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "ACCESS_DENIED", nil)
	case businessflow.IsInvalidCampaignState(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign status does not permit this action", "INVALID_STATE", err.Error())
	case businessflow.IsLockContention(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign is being processed by another worker", "LOCK_CONTENTION", nil)
	case businessflow.IsValidationError(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	case businessflow.IsContactNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", "CONTACT_NOT_FOUND", nil)
	case businessflow.IsReceiptError(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Receipt could not be applied", "RECEIPT_REJECTED", err.Error())
	default:
		log.Println(fallbackMessage, err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
	}
}

// CreateCampaign handles the campaign creation process
// @Summary Create Campaign
// @Description Create a new campaign with a message sequence and contact list
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignResponse} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	userID, ok := h.userID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	result, err := h.campaignFlow.CreateCampaign(h.createRequestContext(c, "/api/v1/campaigns"), &req, metadata)
	if err != nil {
		return h.flowError(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// lifecycleAction factors the shared shape of start, pause, resume and cancel
func (h *CampaignHandler) lifecycleAction(
	c fiber.Ctx,
	endpoint string,
	call func(context.Context, *dto.CampaignActionRequest, *businessflow.ClientMetadata) (*dto.CampaignActionResponse, error),
	fallbackMessage, fallbackCode string,
) error {
	userID, ok := h.userID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := &dto.CampaignActionRequest{
		UUID:   c.Params("uuid"),
		UserID: userID,
	}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := call(h.createRequestContext(c, endpoint), req, metadata)
	if err != nil {
		return h.flowError(c, err, fallbackMessage, fallbackCode)
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// StartCampaign begins delivery for a draft or scheduled campaign
// @Summary Start Campaign
// @Description Begin message delivery for a draft or scheduled campaign
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign started"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Invalid state or lock contention"
// @Router /api/v1/campaigns/{uuid}/start [post]
func (h *CampaignHandler) StartCampaign(c fiber.Ctx) error {
	return h.lifecycleAction(c, "/api/v1/campaigns/:uuid/start",
		h.campaignFlow.StartCampaign, "Campaign start failed", "CAMPAIGN_START_FAILED")
}

// PauseCampaign interrupts a running campaign before its next send
// @Summary Pause Campaign
// @Description Pause a running campaign; progress is kept for resume
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign paused"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Invalid state or lock contention"
// @Router /api/v1/campaigns/{uuid}/pause [post]
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	return h.lifecycleAction(c, "/api/v1/campaigns/:uuid/pause",
		h.campaignFlow.PauseCampaign, "Campaign pause failed", "CAMPAIGN_PAUSE_FAILED")
}

// ResumeCampaign continues a paused campaign from where it stopped
// @Summary Resume Campaign
// @Description Resume a paused campaign from its persisted cursor
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign resumed"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Invalid state or lock contention"
// @Router /api/v1/campaigns/{uuid}/resume [post]
func (h *CampaignHandler) ResumeCampaign(c fiber.Ctx) error {
	return h.lifecycleAction(c, "/api/v1/campaigns/:uuid/resume",
		h.campaignFlow.ResumeCampaign, "Campaign resume failed", "CAMPAIGN_RESUME_FAILED")
}

// CancelCampaign permanently stops a campaign
// @Summary Cancel Campaign
// @Description Permanently stop a campaign; it cannot be restarted
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignActionResponse} "Campaign cancelled"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Invalid state or lock contention"
// @Router /api/v1/campaigns/{uuid}/cancel [post]
func (h *CampaignHandler) CancelCampaign(c fiber.Ctx) error {
	return h.lifecycleAction(c, "/api/v1/campaigns/:uuid/cancel",
		h.campaignFlow.CancelCampaign, "Campaign cancel failed", "CAMPAIGN_CANCEL_FAILED")
}

// GetCampaign returns a campaign with its delivery progress
// @Summary Get Campaign
// @Description Get a campaign's configuration and delivery counters
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetCampaignResponse} "Campaign details"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{uuid} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.campaignFlow.GetCampaign(h.createRequestContext(c, "/api/v1/campaigns/:uuid"), c.Params("uuid"), userID)
	if err != nil {
		return h.flowError(c, err, "Campaign retrieval failed", "CAMPAIGN_GET_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// ListCampaigns returns the tenant's campaigns
// @Summary List Campaigns
// @Description List the authenticated tenant's campaigns, newest first
// @Tags Campaigns
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCampaignsResponse} "Campaigns"
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := &dto.ListCampaignsRequest{
		UserID: userID,
		Page:   fiber.Query(c, "page", 1),
		Limit:  fiber.Query(c, "limit", 20),
	}

	result, err := h.campaignFlow.ListCampaigns(h.createRequestContext(c, "/api/v1/campaigns"), req)
	if err != nil {
		return h.flowError(c, err, "Campaign listing failed", "CAMPAIGN_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// ListAuditLogs returns a campaign's lifecycle history
// @Summary List Campaign Audit Logs
// @Description List lifecycle actions recorded for a campaign, newest first
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse "Audit log entries"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{uuid}/audit-logs [get]
func (h *CampaignHandler) ListAuditLogs(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	entries, err := h.campaignFlow.ListAuditLogs(
		h.createRequestContext(c, "/api/v1/campaigns/:uuid/audit-logs"),
		c.Params("uuid"), userID,
		fiber.Query(c, "page", 1), fiber.Query(c, "limit", 50))
	if err != nil {
		return h.flowError(c, err, "Audit log listing failed", "AUDIT_LOG_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Audit logs retrieved successfully", entries)
}

// ListErrorLogs returns a campaign's per-contact send failures
// @Summary List Campaign Error Logs
// @Description List per-contact send failures for a campaign, newest first
// @Tags Campaigns
// @Produce json
// @Param uuid path string true "Campaign UUID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse "Error log entries"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{uuid}/error-logs [get]
func (h *CampaignHandler) ListErrorLogs(c fiber.Ctx) error {
	userID, ok := h.userID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	entries, err := h.campaignFlow.ListErrorLogs(
		h.createRequestContext(c, "/api/v1/campaigns/:uuid/error-logs"),
		c.Params("uuid"), userID,
		fiber.Query(c, "page", 1), fiber.Query(c, "limit", 50))
	if err != nil {
		return h.flowError(c, err, "Error log listing failed", "ERROR_LOG_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Error logs retrieved successfully", entries)
}

// ProcessReceipt ingests a delivery or read receipt from the gateway
// @Summary Process Gateway Receipt
// @Description Apply a delivery or read receipt to the matching campaign contact
// @Tags Gateway
// @Accept json
// @Produce json
// @Param request body dto.ReceiptRequest true "Receipt payload"
// @Success 200 {object} dto.APIResponse{data=dto.ReceiptResponse} "Receipt processed"
// @Failure 404 {object} dto.APIResponse "Campaign or contact not found"
// @Failure 409 {object} dto.APIResponse "Receipt rejected"
// @Router /gateway/receipts [post]
func (h *CampaignHandler) ProcessReceipt(c fiber.Ctx) error {
	var req dto.ReceiptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.campaignFlow.ProcessReceipt(h.createRequestContext(c, "/gateway/receipts"), &req)
	if err != nil {
		return h.flowError(c, err, "Receipt processing failed", "RECEIPT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

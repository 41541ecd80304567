// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign lifecycle errors
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignAccessDenied = errors.New("campaign access denied")
	ErrInvalidCampaignState = errors.New("campaign status does not permit this action")
	ErrLockContention       = errors.New("campaign is being processed by another worker")

	// Campaign validation errors
	ErrMessageSequenceRequired = errors.New("message sequence must contain at least one template")
	ErrInvalidMessageTemplate  = errors.New("message template is invalid")
	ErrInvalidDelayRange       = errors.New("delay range is invalid")
	ErrInvalidWindow           = errors.New("scheduling window is invalid")
	ErrInvalidTimezone         = errors.New("timezone is invalid")
	ErrContactsRequired        = errors.New("campaign must include at least one contact")
	ErrInvalidPhone            = errors.New("contact phone number is invalid")
	ErrCampaignUUIDRequired    = errors.New("campaign UUID is required")

	// Receipt errors
	ErrContactNotFound         = errors.New("contact not found in campaign")
	ErrInvalidReceiptStatus    = errors.New("receipt status is not delivered or read")
	ErrReceiptTransitionDenied = errors.New("receipt would move contact backwards")
)

// BusinessError wraps business logic errors with additional context
type BusinessError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error checking helper functions
func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsInvalidCampaignState(err error) bool {
	return errors.Is(err, ErrInvalidCampaignState)
}

func IsLockContention(err error) bool {
	return errors.Is(err, ErrLockContention)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrMessageSequenceRequired) ||
		errors.Is(err, ErrInvalidMessageTemplate) ||
		errors.Is(err, ErrInvalidDelayRange) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidTimezone) ||
		errors.Is(err, ErrContactsRequired) ||
		errors.Is(err, ErrInvalidPhone) ||
		errors.Is(err, ErrCampaignUUIDRequired)
}

func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

func IsReceiptError(err error) bool {
	return errors.Is(err, ErrInvalidReceiptStatus) ||
		errors.Is(err, ErrReceiptTransitionDenied)
}

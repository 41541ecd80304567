// Package businessflow contains the business logic for the application.
package businessflow

import "strconv"

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// Actor renders the metadata as an audit actor string
func (cm *ClientMetadata) Actor(userID uint) string {
	if cm == nil {
		return "system"
	}
	return "user:" + strconv.FormatUint(uint64(userID), 10) + "@" + cm.IPAddress
}

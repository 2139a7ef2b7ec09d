package models

import "strings"

// PushResult captures what the transport reported for one token.
type PushResult struct {
	Token     string `json:"token"`
	Provider  string `json:"provider"`
	MessageID string `json:"message_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Transport error codes that mean the endpoint is gone for good.
const (
	ErrCodeInvalidToken       = "messaging/invalid-registration-token"
	ErrCodeTokenNotRegistered = "messaging/registration-token-not-registered"
)

// Outcome is the terminal result of delivering a message to one recipient.
type Outcome string

const (
	// OutcomeDelivered indicates the push was acknowledged by the provider.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeTransient is retry-worthy but not acted upon this cycle.
	OutcomeTransient Outcome = "transient_failure"
	// OutcomePermanent means the token is dead and must be pruned.
	OutcomePermanent Outcome = "permanent_failure"
)

// DeliveryOutcome is the per recipient result of one dispatch cycle.
type DeliveryOutcome struct {
	Token     string  `json:"token"`
	Result    Outcome `json:"result"`
	ErrorCode string  `json:"error_code,omitempty"`
	Err       error   `json:"-"`
}

// IsPermanentCode reports whether a transport error code marks the token as
// invalid or unregistered. The "messaging/" namespace is optional.
func IsPermanentCode(code string) bool {
	code = strings.TrimPrefix(strings.TrimSpace(code), "messaging/")
	switch code {
	case "invalid-registration-token", "registration-token-not-registered":
		return true
	default:
		return false
	}
}

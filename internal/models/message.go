package models

// MessageTitle is shared by every notification the service sends.
const MessageTitle = "I²DS Messaging Service"

// MessageClass decides which recipients a notification is meant for.
type MessageClass string

const (
	ClassWarningMotion            MessageClass = "warning.motion"
	ClassWarningDoor              MessageClass = "warning.door"
	ClassWarningIntrusionResolved MessageClass = "warning.intrusion_resolved"
	ClassInfoStateChange          MessageClass = "info.state_change"
	ClassInfoDeviceJoined         MessageClass = "info.device_joined"
	ClassInfoPowerFailure         MessageClass = "info.power_failure"
	ClassInfoSecurityBreach       MessageClass = "info.security_breach"
)

// Priority is the delivery priority hint passed to the push transport.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// NotificationMessage is composed per event and never persisted.
type NotificationMessage struct {
	Title    string       `json:"title"`
	Body     string       `json:"body"`
	Class    MessageClass `json:"class"`
	Priority Priority     `json:"priority"`
}

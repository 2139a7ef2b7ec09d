package models

import "time"

// TriggerKind names the change that produced a trigger event.
type TriggerKind string

const (
	TriggerStateWrite    TriggerKind = "state_write"
	TriggerDeviceCreated TriggerKind = "device_created"
	TriggerInfoUpdate    TriggerKind = "info_update"
	TriggerScheduledTick TriggerKind = "scheduled_tick"
)

// InfoRecord is the coordinator node health record. Both fields are
// string booleans as written by the firmware.
type InfoRecord struct {
	PowerOK    string `json:"power_ok"`
	SecurityOK string `json:"security_ok"`
}

// TriggerEvent is the payload published on the trigger queue.
type TriggerEvent struct {
	EventID    string      `json:"event_id"`
	Kind       TriggerKind `json:"kind"`
	DevicePath string      `json:"device_path,omitempty"`
	Before     *Device     `json:"before,omitempty"`
	After      *Device     `json:"after,omitempty"`
	InfoBefore *InfoRecord `json:"info_before,omitempty"`
	InfoAfter  *InfoRecord `json:"info_after,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidDeviceID is returned when a path segment carries no digits.
var ErrInvalidDeviceID = errors.New("invalid device id")

// DeviceID identifies a sensor in the device registry.
type DeviceID int64

// ParseDeviceID derives a device id from an external path segment such as "dev42"
// by dropping every non-digit rune.
func ParseDeviceID(segment string) (DeviceID, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, segment)
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDeviceID, segment)
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDeviceID, segment, err)
	}
	return DeviceID(id), nil
}

// HardwareClass is the normalized sensor hardware family.
type HardwareClass int

const (
	HardwareUnknown HardwareClass = iota
	HardwareCPN
	HardwarePIRSN
	HardwareACSN
)

// Raw hardware codes reported by the sensors.
const (
	HardwareCodeCPN   = 136
	HardwareCodePIRSN = 137
	HardwareCodeACSN  = 138
)

// HardwareFromCode maps a raw hardware code to its class.
func HardwareFromCode(code int) HardwareClass {
	switch code {
	case HardwareCodeCPN:
		return HardwareCPN
	case HardwareCodePIRSN:
		return HardwarePIRSN
	case HardwareCodeACSN:
		return HardwareACSN
	default:
		return HardwareUnknown
	}
}

func (h HardwareClass) String() string {
	switch h {
	case HardwareCPN:
		return "CPN"
	case HardwarePIRSN:
		return "PIRSN"
	case HardwareACSN:
		return "ACSN"
	default:
		return "Unknown device"
	}
}

// StateCode is the raw state value written by a sensor.
type StateCode int

const (
	StateActivated     StateCode = 5
	StateDeactivated   StateCode = 6
	StateHardwareFault StateCode = 202
	StateAlerting      StateCode = 204
	StateBootPending   StateCode = 224
)

// Phrase returns the sentence fragment used in state change notifications.
// Alerting has no phrase of its own; it is handled by the warning rules.
func (s StateCode) Phrase() string {
	switch s {
	case StateActivated:
		return "been activated"
	case StateDeactivated:
		return "been deactivated"
	case StateHardwareFault:
		return "detected a hardware fault"
	case StateBootPending:
		return "booted and will enter deactivated mode once the sensor is stabilized"
	default:
		return "encountered an unknown error"
	}
}

// Device is a point-in-time snapshot of one registry entry.
type Device struct {
	ID           DeviceID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Hardware     int       `json:"hw" gorm:"column:hw"`
	State        StateCode `json:"state" gorm:"column:state"`
	TriggerCount int       `json:"trigd" gorm:"column:trigd"`
	SerialID     string    `json:"self_id" gorm:"column:self_id"`
}

func (Device) TableName() string { return "devices" }

// HardwareClass returns the normalized hardware family of the device.
func (d Device) HardwareClass() HardwareClass {
	return HardwareFromCode(d.Hardware)
}

// LocationTag names the place a device is installed.
type LocationTag struct {
	DeviceID DeviceID `json:"device_id" gorm:"primaryKey;autoIncrement:false"`
	Location string   `json:"location"`
}

func (LocationTag) TableName() string { return "tags" }

// LocationTags is a keyed snapshot of the location tag store.
type LocationTags map[DeviceID]string

// Describe returns the location phrase used in message bodies.
func (l LocationTags) Describe(id DeviceID) string {
	if loc, ok := l[id]; ok && strings.TrimSpace(loc) != "" {
		return "the " + loc
	}
	return "an unknown location"
}

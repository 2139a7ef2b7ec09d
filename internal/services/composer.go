package services

import (
	"strings"

	"github.com/CyberwizD/sensor-notifier/internal/models"
)

// ComposeInput is everything the composer needs to pick a message.
// Device is used by the state write and device created paths, Info by the
// info update path.
type ComposeInput struct {
	Kind      models.TriggerKind
	Device    models.Device
	Locations models.LocationTags
	Info      models.InfoRecord
}

// Compose translates one transition into at most one notification. The
// second return value is false when the transition is suppressed.
func Compose(in ComposeInput) (models.NotificationMessage, bool) {
	switch in.Kind {
	case models.TriggerStateWrite:
		return ComposeStateChange(in.Device, in.Locations)
	case models.TriggerDeviceCreated:
		return ComposeDeviceJoined(in.Device), true
	case models.TriggerInfoUpdate:
		return ComposeInfoUpdate(in.Info)
	default:
		return models.NotificationMessage{}, false
	}
}

// stateRule is one guarded entry of the state write rule chain.
type stateRule struct {
	name  string
	match func(d models.Device) bool
	class func(d models.Device) models.MessageClass
	body  string
	prio  models.Priority
}

// stateRules is evaluated top to bottom and the first match wins. The
// intrusion rule must stay ahead of the alerting rule, and both ahead of the
// generic state change rule.
var stateRules = []stateRule{
	{
		name: "intrusion_resolved",
		match: func(d models.Device) bool {
			return d.HardwareClass() == models.HardwarePIRSN &&
				d.State == models.StateActivated &&
				d.TriggerCount > 2
		},
		class: constClass(models.ClassWarningIntrusionResolved),
		body:  bodyIntrusionResolved,
		prio:  models.PriorityHigh,
	},
	{
		name:  "alerting",
		match: func(d models.Device) bool { return d.State == models.StateAlerting },
		class: func(d models.Device) models.MessageClass {
			if d.HardwareClass() == models.HardwarePIRSN {
				return models.ClassWarningMotion
			}
			return models.ClassWarningDoor
		},
		prio: models.PriorityHigh,
	},
	{
		name:  "state_change",
		match: func(d models.Device) bool { return d.HardwareClass() != models.HardwareACSN },
		class: constClass(models.ClassInfoStateChange),
		body:  bodyStateChange,
		prio:  models.PriorityNormal,
	},
}

func constClass(c models.MessageClass) func(models.Device) models.MessageClass {
	return func(models.Device) models.MessageClass { return c }
}

// ComposeStateChange applies the state write rule chain to a device snapshot.
func ComposeStateChange(d models.Device, locations models.LocationTags) (models.NotificationMessage, bool) {
	for _, rule := range stateRules {
		if !rule.match(d) {
			continue
		}
		class := rule.class(d)
		body := rule.body
		if body == "" {
			body = alertingBody(class)
		}
		return models.NotificationMessage{
			Title:    models.MessageTitle,
			Body:     RenderTemplate(body, deviceVars(d, locations)),
			Class:    class,
			Priority: rule.prio,
		}, true
	}
	return models.NotificationMessage{}, false
}

func alertingBody(class models.MessageClass) string {
	if class == models.ClassWarningMotion {
		return bodyMotion
	}
	return bodyDoor
}

// ComposeDeviceJoined builds the announcement for a newly registered device.
func ComposeDeviceJoined(d models.Device) models.NotificationMessage {
	return models.NotificationMessage{
		Title:    models.MessageTitle,
		Body:     RenderTemplate(bodyDeviceJoined, deviceVars(d, nil)),
		Class:    models.ClassInfoDeviceJoined,
		Priority: models.PriorityNormal,
	}
}

// ComposeInfoUpdate reports a power failure before a security breach; a
// healthy record produces nothing.
func ComposeInfoUpdate(info models.InfoRecord) (models.NotificationMessage, bool) {
	msg := models.NotificationMessage{Title: models.MessageTitle, Priority: models.PriorityNormal}
	switch {
	case isFalse(info.PowerOK):
		msg.Class = models.ClassInfoPowerFailure
		msg.Body = bodyPowerFailure
	case isFalse(info.SecurityOK):
		msg.Class = models.ClassInfoSecurityBreach
		msg.Body = bodySecurityBreach
	default:
		return models.NotificationMessage{}, false
	}
	return msg, true
}

func isFalse(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "false")
}

func deviceVars(d models.Device, locations models.LocationTags) map[string]string {
	return map[string]string{
		"hw":       d.HardwareClass().String(),
		"serial":   d.SerialID,
		"state":    d.State.Phrase(),
		"location": locations.Describe(d.ID),
	}
}

package services

import (
	"regexp"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Message body templates. Placeholders are filled by RenderTemplate.
const (
	bodyIntrusionResolved = "The system has encountered a likely intrusion event."
	bodyMotion            = "WARNING! {{hw}} (ID {{serial}}) in {{location}} has detected motion."
	bodyDoor              = "WARNING! {{hw}} (ID {{serial}}) has detected that the door in {{location}} has been opened."
	bodyStateChange       = "{{hw}} (ID {{serial}}) has {{state}}."
	bodyDeviceJoined      = "{{hw}} (ID {{serial}}) has joined the system."
	bodyPowerFailure      = "Power failure detected."
	bodySecurityBreach    = "Security breach detected."
)

// RenderTemplate replaces {{key}} placeholders with values from variables.
// Unknown placeholders are left untouched.
func RenderTemplate(template string, variables map[string]string) string {
	if template == "" || len(variables) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := variables[submatch[1]]; ok {
			return value
		}
		return match
	})
}

package enums

import "fmt"

// AutomationStatus maps to the automation_status_enum enum in Postgres.
type AutomationStatus string

const (
	AutomationStatusActive      AutomationStatus = "active"
	AutomationStatusInactive    AutomationStatus = "inactive"
	AutomationStatusMaintenance AutomationStatus = "maintenance"
)

var validAutomationStatuses = []AutomationStatus{
	AutomationStatusActive,
	AutomationStatusInactive,
	AutomationStatusMaintenance,
}

// IsValid reports whether the value matches the canonical automation status enum.
func (s AutomationStatus) IsValid() bool {
	for _, candidate := range validAutomationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAutomationStatus converts raw input into AutomationStatus.
func ParseAutomationStatus(value string) (AutomationStatus, error) {
	for _, candidate := range validAutomationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid automation status %q", value)
}

package enums

import "fmt"

// UserAutomationStatus maps to the user_automation_status_enum enum in Postgres.
type UserAutomationStatus string

const (
	UserAutomationStatusActive    UserAutomationStatus = "active"
	UserAutomationStatusExpired   UserAutomationStatus = "expired"
	UserAutomationStatusSuspended UserAutomationStatus = "suspended"
)

var validUserAutomationStatuses = []UserAutomationStatus{
	UserAutomationStatusActive,
	UserAutomationStatusExpired,
	UserAutomationStatusSuspended,
}

// IsValid reports whether the value matches the canonical subscription status enum.
func (s UserAutomationStatus) IsValid() bool {
	for _, candidate := range validUserAutomationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseUserAutomationStatus converts raw input into UserAutomationStatus.
func ParseUserAutomationStatus(value string) (UserAutomationStatus, error) {
	for _, candidate := range validUserAutomationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user automation status %q", value)
}

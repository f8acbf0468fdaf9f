package enums

import "fmt"

// ModerationStatus is the review state shared by listings, advertisements
// and merchant requests.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

var validModerationStatuses = []ModerationStatus{
	ModerationPending,
	ModerationApproved,
	ModerationRejected,
}

// String implements fmt.Stringer.
func (s ModerationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ModerationStatus.
func (s ModerationStatus) IsValid() bool {
	for _, candidate := range validModerationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsPubliclyVisible reports whether items in this state may appear in shopper read paths.
func (s ModerationStatus) IsPubliclyVisible() bool {
	return s == ModerationApproved
}

// ParseModerationStatus converts raw input into a ModerationStatus.
func ParseModerationStatus(value string) (ModerationStatus, error) {
	for _, candidate := range validModerationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid moderation status %q", value)
}

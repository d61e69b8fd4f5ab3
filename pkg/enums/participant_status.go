package enums

import "fmt"

// ParticipantStatus tracks where a rider stands on a ride roster.
type ParticipantStatus string

const (
	ParticipantStatusPending  ParticipantStatus = "pending"
	ParticipantStatusAccepted ParticipantStatus = "accepted"
	ParticipantStatusDeclined ParticipantStatus = "declined"
)

var validParticipantStatuses = []ParticipantStatus{
	ParticipantStatusPending,
	ParticipantStatusAccepted,
	ParticipantStatusDeclined,
}

// String implements fmt.Stringer.
func (s ParticipantStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ParticipantStatus.
func (s ParticipantStatus) IsValid() bool {
	for _, candidate := range validParticipantStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseParticipantStatus converts raw input into a ParticipantStatus.
func ParseParticipantStatus(value string) (ParticipantStatus, error) {
	for _, candidate := range validParticipantStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid participant status %q", value)
}

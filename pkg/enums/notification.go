package enums

import "fmt"

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationTypeRideNearby   NotificationType = "ride_nearby"
	NotificationTypeRideReminder NotificationType = "ride_reminder"
	NotificationTypeRosterUpdate NotificationType = "roster_update"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeRideNearby,
	NotificationTypeRideReminder,
	NotificationTypeRosterUpdate,
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

package domain

// AccessibilityStatus describes how a user prefers to receive messages.
type AccessibilityStatus string

const (
	StatusNormal AccessibilityStatus = "normal"
	StatusDeaf   AccessibilityStatus = "deaf"
	StatusMute   AccessibilityStatus = "mute"
	StatusBlind  AccessibilityStatus = "blind"
)

// Valid reports whether s is one of the known statuses.
func (s AccessibilityStatus) Valid() bool {
	switch s {
	case StatusNormal, StatusDeaf, StatusMute, StatusBlind:
		return true
	}
	return false
}

// Profile is the accessibility profile stored alongside the auth user.
type Profile struct {
	ID     string              `json:"id"`
	Status AccessibilityStatus `json:"status"`
}

package domain

// PresenceEntry is one line of the presence roster, unique by UserID.
type PresenceEntry struct {
	UserID   string `json:"id" validate:"required"`
	Username string `json:"username" validate:"required"`
	Status   Status `json:"status,omitempty" validate:"omitempty,oneof=online idle dnd offline"`
	Activity string `json:"activity,omitempty"`
}

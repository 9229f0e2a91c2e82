package domain

import "time"

// UserLabel is an owner-defined classification bucket. Prompt holds the
// natural-language criteria handed to the model.
type UserLabel struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AppUserID string    `json:"app_user_id" gorm:"uniqueIndex:idx_owner_label_name;not null"`
	Name      string    `json:"name" gorm:"uniqueIndex:idx_owner_label_name;not null"`
	Color     string    `json:"color,omitempty"`
	Prompt    string    `json:"prompt,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageLabel associates a local message with a user label. At most one row
// exists per pair.
type MessageLabel struct {
	MessageID string    `json:"message_id" gorm:"primaryKey"`
	LabelID   string    `json:"label_id" gorm:"primaryKey;index"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultLabels are created for an owner that has no labels yet.
var DefaultLabels = []UserLabel{
	{
		Name:   "Travel",
		Color:  "#b0f566",
		Prompt: "Classify this email if it relates to travel, such as flight confirmations, hotel bookings, rental car reservations, travel itineraries, or visa information.",
	},
	{
		Name:   "Action Required",
		Color:  "#6638f0",
		Prompt: "Classify this email if it contains a direct question, a request for a specific action, a task assignment, or a clear deadline that the recipient needs to act upon.",
	},
	{
		Name:   "Meeting & Calendar",
		Color:  "#5cc9f5",
		Prompt: "Classify this email if it is a calendar invitation, a meeting request, an agenda for a meeting, a scheduling confirmation (like from Calendly), or a discussion about setting up a meeting.",
	},
}

package dto

// ReminderDispatchResult reports how many reminders were queued.
type ReminderDispatchResult struct {
	Period string `json:"period"`
	Tier   string `json:"urgency_tier"`
	Queued int    `json:"queued"`
}

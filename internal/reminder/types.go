package reminder

import "time"

// Status is the reminder lifecycle state. Transitions are one-way only:
// PENDING to SENT on delivery, PENDING to CANCELLED on explicit cancel or
// delivery failure. SENT and CANCELLED are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

// Reminder is a persisted request to deliver a message at a future instant,
// tied to a memory and its owner. DueAt is stored in UTC.
type Reminder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MemoryID  string    `json:"memory_id"`
	DueAt     time.Time `json:"due_at"`
	Message   string    `json:"message"`
	Recipient string    `json:"recipient"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats summarizes reminders, optionally scoped to one user. SuccessRate is
// sent/total; UpcomingToday counts pending reminders due within the current
// calendar day.
type Stats struct {
	Total         int64   `json:"total"`
	Pending       int64   `json:"pending"`
	Sent          int64   `json:"sent"`
	Cancelled     int64   `json:"cancelled"`
	UpcomingToday int64   `json:"upcoming_today"`
	SuccessRate   float64 `json:"success_rate"`
}

package events

import "time"

// Event types published on the user events queue.
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"
)

// UserEvent is the JSON payload put on the RabbitMQ queue after a user mutation.
type UserEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Changes    []string  `json:"changes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

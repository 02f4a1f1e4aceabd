package entity

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// User is the aggregate root for the user domain.
// Values are replaced, not mutated: Update returns a new User.
type User struct {
	ID        string
	Email     string
	Name      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// timestamps are kept at microsecond precision to match timestamptz
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NewUser builds an active user with a fresh id.
func NewUser(email, name string) User {
	ts := now()
	return User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Status:    StatusActive,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// Update returns a copy with the non-nil fields applied and UpdatedAt moved forward.
func (u User) Update(email, name *string) User {
	next := u
	if email != nil {
		next.Email = *email
	}
	if name != nil {
		next.Name = *name
	}
	ts := now()
	if !ts.After(u.UpdatedAt) {
		ts = u.UpdatedAt.Add(time.Microsecond)
	}
	next.UpdatedAt = ts
	return next
}

package postgres

import (
	"time"

	"github.com/oksasatya/go-user-service/internal/domain/entity"
)

// Table layout lives in db/migrations; keep these in sync.
const (
	usersTable         = "users"
	usersEmailUniqueFK = "users_email_key"
	userColumns        = "id, email, name, status, created_at, updated_at"
)

// userModel maps one row of the users table.
type userModel struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newUserModel(u entity.User) userModel {
	status := string(u.Status)
	if status == "" {
		status = string(entity.StatusActive)
	}
	return userModel{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Status:    status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (m userModel) toEntity() entity.User {
	return entity.User{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		Status:    entity.Status(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

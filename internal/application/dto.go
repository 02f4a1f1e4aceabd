package application

import (
	"time"

	"github.com/oksasatya/go-user-service/internal/domain/entity"
)

type CreateUserRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
	Name  string `json:"name" binding:"required,max=100"`
}

// UpdateUserRequest carries only the fields to change; nil means untouched.
type UpdateUserRequest struct {
	Email *string `json:"email" binding:"omitempty,email,max=255"`
	Name  *string `json:"name" binding:"omitempty,min=1,max=100"`
}

type ListUsersQuery struct {
	Limit  int
	Offset int
	Status *entity.Status
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserListResponse struct {
	Data   []UserResponse `json:"data"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type ExportResult struct {
	Object string    `json:"object"`
	URL    string    `json:"url"`
	Count  int       `json:"count"`
	At     time.Time `json:"exported_at"`
}

func toResponse(u entity.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toResponses(users []entity.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toResponse(u))
	}
	return out
}

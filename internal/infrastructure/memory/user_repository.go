package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oksasatya/go-user-service/internal/domain"
	"github.com/oksasatya/go-user-service/internal/domain/entity"
	"github.com/oksasatya/go-user-service/internal/domain/repository"
)

// UserRepository is an in-memory implementation of repository.UserRepository.
// The email uniqueness check and the write happen under the same lock.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]entity.User
	byEmail map[string]string
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository(seed ...entity.User) *UserRepository {
	r := &UserRepository{
		byID:    make(map[string]entity.User),
		byEmail: make(map[string]string),
	}
	for _, u := range seed {
		r.byID[u.ID] = u
		r.byEmail[u.Email] = u.ID
	}
	return r
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := r.byID[id]
	return &u, nil
}

func (r *UserRepository) FindAll(ctx context.Context, limit, offset int, status *entity.Status) ([]entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filter(status)
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []entity.User{}, nil
	}
	end := len(matched)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

func (r *UserRepository) Count(ctx context.Context, status *entity.Status) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filter(status)), nil
}

func (r *UserRepository) Create(ctx context.Context, u entity.User) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; ok {
		return entity.User{}, &domain.EntityAlreadyExistsError{Entity: "user", Field: "id", Value: u.ID}
	}
	if _, ok := r.byEmail[u.Email]; ok {
		return entity.User{}, domain.NewUserEmailTaken(u.Email)
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, u entity.User) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[u.ID]
	if !ok {
		return entity.User{}, domain.NewUserNotFound(u.ID)
	}
	if owner, ok := r.byEmail[u.Email]; ok && owner != u.ID {
		return entity.User{}, domain.NewUserEmailTaken(u.Email)
	}
	if prev.Email != u.Email {
		delete(r.byEmail, prev.Email)
	}
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.NewUserNotFound(id)
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	return nil
}

// caller holds the lock
func (r *UserRepository) filter(status *entity.Status) []entity.User {
	out := make([]entity.User, 0, len(r.byID))
	for _, u := range r.byID {
		if status != nil && u.Status != *status {
			continue
		}
		out = append(out, u)
	}
	return out
}

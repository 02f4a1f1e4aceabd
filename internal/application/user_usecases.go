package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-service/internal/domain"
	"github.com/oksasatya/go-user-service/internal/domain/entity"
	repo "github.com/oksasatya/go-user-service/internal/domain/repository"
	"github.com/oksasatya/go-user-service/pkg/events"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	defaultSearchSize = 10
	maxSearchSize     = 50
	exportPageSize    = 500
)

var ErrExportNotConfigured = errors.New("snapshot storage not configured")

var stats = expvar.NewMap("users")

// UserIndexer keeps a search index of users in sync.
type UserIndexer interface {
	Index(ctx context.Context, u entity.User) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, q string, size int) ([]entity.User, error)
}

// EventPublisher publishes a JSON-encodable message.
type EventPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// SnapshotStore uploads an object and returns its URL.
type SnapshotStore interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

// UserUseCases implements the user operations on top of a repository.
// Indexer, Events and Snapshots are optional; their failures are logged and never
// change the result of a mutation.
type UserUseCases struct {
	Repo      repo.UserRepository
	Logger    *logrus.Logger
	Indexer   UserIndexer
	Events    EventPublisher
	Snapshots SnapshotStore
}

func NewUserUseCases(r repo.UserRepository, logger *logrus.Logger) *UserUseCases {
	return &UserUseCases{Repo: r, Logger: logger}
}

func (s *UserUseCases) CreateUser(ctx context.Context, req CreateUserRequest) (UserResponse, error) {
	existing, err := s.Repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return UserResponse{}, err
	}
	if existing != nil {
		return UserResponse{}, domain.NewUserEmailTaken(req.Email)
	}

	saved, err := s.Repo.Create(ctx, entity.NewUser(req.Email, req.Name))
	if err != nil {
		return UserResponse{}, err
	}

	stats.Add("created", 1)
	s.info("user created", saved.ID)
	s.afterWrite(ctx, saved, events.UserCreated, nil)
	return toResponse(saved), nil
}

func (s *UserUseCases) GetUser(ctx context.Context, id string) (UserResponse, error) {
	u, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	if u == nil {
		return UserResponse{}, domain.NewUserNotFound(id)
	}
	return toResponse(*u), nil
}

// ListUsers returns one page plus the total matching the filter. The two are separate
// reads and may disagree if users change in between.
func (s *UserUseCases) ListUsers(ctx context.Context, q ListUsersQuery) (UserListResponse, error) {
	limit, offset := q.Limit, q.Offset
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.Repo.FindAll(ctx, limit, offset, q.Status)
	if err != nil {
		return UserListResponse{}, err
	}
	total, err := s.Repo.Count(ctx, q.Status)
	if err != nil {
		return UserListResponse{}, err
	}

	return UserListResponse{
		Data:   toResponses(users),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

func (s *UserUseCases) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (UserResponse, error) {
	u, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	if u == nil {
		return UserResponse{}, domain.NewUserNotFound(id)
	}

	if req.Email != nil && *req.Email != u.Email {
		existing, err := s.Repo.FindByEmail(ctx, *req.Email)
		if err != nil {
			return UserResponse{}, err
		}
		if existing != nil && existing.ID != u.ID {
			return UserResponse{}, domain.NewUserEmailTaken(*req.Email)
		}
	}

	saved, err := s.Repo.Update(ctx, u.Update(req.Email, req.Name))
	if err != nil {
		return UserResponse{}, err
	}

	stats.Add("updated", 1)
	s.info("user updated", saved.ID)
	s.afterWrite(ctx, saved, events.UserUpdated, changedFields(*u, saved))
	return toResponse(saved), nil
}

func (s *UserUseCases) DeleteUser(ctx context.Context, id string) error {
	u, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return domain.NewUserNotFound(id)
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}

	stats.Add("deleted", 1)
	s.info("user deleted", id)
	if s.Indexer != nil {
		if err := s.Indexer.Remove(ctx, id); err != nil {
			s.warn(err, id, "search index remove failed")
		}
	}
	s.publish(ctx, *u, events.UserDeleted, nil)
	return nil
}

// SearchUsers runs a full-text query against the search index.
func (s *UserUseCases) SearchUsers(ctx context.Context, q string, size int) ([]UserResponse, error) {
	if s.Indexer == nil {
		return []UserResponse{}, nil
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}
	users, err := s.Indexer.Search(ctx, q, size)
	if err != nil {
		return nil, err
	}
	return toResponses(users), nil
}

// ExportUsers writes every user as one JSON line and uploads the result to the snapshot store.
func (s *UserUseCases) ExportUsers(ctx context.Context) (ExportResult, error) {
	if s.Snapshots == nil {
		return ExportResult{}, ErrExportNotConfigured
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0
	for offset := 0; ; offset += exportPageSize {
		page, err := s.Repo.FindAll(ctx, exportPageSize, offset, nil)
		if err != nil {
			return ExportResult{}, err
		}
		for _, u := range page {
			if err := enc.Encode(toResponse(u)); err != nil {
				return ExportResult{}, err
			}
			count++
		}
		if len(page) < exportPageSize {
			break
		}
	}

	at := time.Now().UTC()
	object := fmt.Sprintf("exports/users-%s.ndjson", at.Format("20060102T150405Z"))
	url, err := s.Snapshots.Upload(ctx, object, "application/x-ndjson", &buf)
	if err != nil {
		return ExportResult{}, fmt.Errorf("upload snapshot: %w", err)
	}

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"object": object, "count": count}).Info("users exported")
	}
	return ExportResult{Object: object, URL: url, Count: count, At: at}, nil
}

func (s *UserUseCases) afterWrite(ctx context.Context, u entity.User, eventType string, changes []string) {
	if s.Indexer != nil {
		if err := s.Indexer.Index(ctx, u); err != nil {
			s.warn(err, u.ID, "search index failed")
		}
	}
	s.publish(ctx, u, eventType, changes)
}

func (s *UserUseCases) publish(ctx context.Context, u entity.User, eventType string, changes []string) {
	if s.Events == nil {
		return
	}
	ev := events.UserEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Status:     string(u.Status),
		Changes:    changes,
		OccurredAt: time.Now().UTC(),
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Events.PublishJSON(c, ev); err != nil {
		s.warn(err, u.ID, "publish user event failed")
	}
}

func changedFields(before, after entity.User) []string {
	var out []string
	if before.Email != after.Email {
		out = append(out, "email")
	}
	if before.Name != after.Name {
		out = append(out, "name")
	}
	return out
}

func (s *UserUseCases) info(msg, id string) {
	if s.Logger != nil {
		s.Logger.WithField("user_id", id).Info(msg)
	}
}

func (s *UserUseCases) warn(err error, id, msg string) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", id).Warn(msg)
	}
}

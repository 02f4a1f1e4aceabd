package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-user-service/internal/domain"
	"github.com/oksasatya/go-user-service/internal/domain/entity"
	"github.com/oksasatya/go-user-service/internal/infrastructure/memory"
	"github.com/oksasatya/go-user-service/pkg/events"
)

func strPtr(s string) *string { return &s }

// recordingRepo counts mutations on top of the in-memory repository.
type recordingRepo struct {
	*memory.UserRepository
	writes  int
	deletes int
	// blindEmail makes FindByEmail always miss, as if another request raced us.
	blindEmail bool
	// vanishAfterRead deletes the user right after FindByID returns it, as if a
	// concurrent DeleteUser landed between the lookup and the write.
	vanishAfterRead bool
}

func (r *recordingRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := r.UserRepository.FindByID(ctx, id)
	if err == nil && u != nil && r.vanishAfterRead {
		_ = r.UserRepository.Delete(ctx, id)
	}
	return u, err
}

func (r *recordingRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if r.blindEmail {
		return nil, nil
	}
	return r.UserRepository.FindByEmail(ctx, email)
}

func (r *recordingRepo) Create(ctx context.Context, u entity.User) (entity.User, error) {
	r.writes++
	return r.UserRepository.Create(ctx, u)
}

func (r *recordingRepo) Update(ctx context.Context, u entity.User) (entity.User, error) {
	r.writes++
	return r.UserRepository.Update(ctx, u)
}

func (r *recordingRepo) Delete(ctx context.Context, id string) error {
	r.deletes++
	return r.UserRepository.Delete(ctx, id)
}

type fakeIndexer struct {
	indexed map[string]entity.User
	removed []string
	err     error
}

func newFakeIndexer() *fakeIndexer { return &fakeIndexer{indexed: map[string]entity.User{}} }

func (f *fakeIndexer) Index(ctx context.Context, u entity.User) error {
	f.indexed[u.ID] = u
	return f.err
}

func (f *fakeIndexer) Remove(ctx context.Context, id string) error {
	f.removed = append(f.removed, id)
	return f.err
}

func (f *fakeIndexer) Search(ctx context.Context, q string, size int) ([]entity.User, error) {
	var out []entity.User
	for _, u := range f.indexed {
		if strings.Contains(u.Email, q) || strings.Contains(u.Name, q) {
			out = append(out, u)
		}
	}
	if len(out) > size {
		out = out[:size]
	}
	return out, f.err
}

type fakePublisher struct {
	events []events.UserEvent
	err    error
}

func (f *fakePublisher) PublishJSON(ctx context.Context, body any) error {
	if ev, ok := body.(events.UserEvent); ok {
		f.events = append(f.events, ev)
	}
	return f.err
}

type fakeStore struct {
	path, contentType string
	body              []byte
}

func (f *fakeStore) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.path, f.contentType, f.body = objectPath, contentType, b
	return "https://storage.googleapis.com/bucket/" + objectPath, nil
}

func newUseCases() (*UserUseCases, *recordingRepo) {
	r := &recordingRepo{UserRepository: memory.NewUserRepository()}
	return NewUserUseCases(r, nil), r
}

func mustCreate(t *testing.T, uc *UserUseCases, email, name string) UserResponse {
	t.Helper()
	res, err := uc.CreateUser(context.Background(), CreateUserRequest{Email: email, Name: name})
	require.NoError(t, err)
	return res
}

func TestCreateUser(t *testing.T) {
	uc, r := newUseCases()

	res := mustCreate(t, uc, "a@x.com", "A")

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "a@x.com", res.Email)
	assert.Equal(t, "A", res.Name)
	assert.Equal(t, "active", res.Status)
	assert.False(t, res.UpdatedAt.Before(res.CreatedAt))
	assert.Equal(t, 1, r.writes)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	uc, r := newUseCases()
	mustCreate(t, uc, "a@x.com", "A")

	_, err := uc.CreateUser(context.Background(), CreateUserRequest{Email: "a@x.com", Name: "B"})

	require.Error(t, err)
	assert.True(t, domain.IsAlreadyExists(err))
	var exists *domain.EntityAlreadyExistsError
	require.True(t, errors.As(err, &exists))
	assert.Equal(t, "a@x.com", exists.Value)
	assert.Equal(t, 1, r.writes)
}

func TestCreateUserRaceSurfacesStorageConstraint(t *testing.T) {
	uc, r := newUseCases()
	mustCreate(t, uc, "a@x.com", "A")
	r.blindEmail = true

	_, err := uc.CreateUser(context.Background(), CreateUserRequest{Email: "a@x.com", Name: "B"})

	assert.True(t, domain.IsAlreadyExists(err))
	n, _ := r.Count(context.Background(), nil)
	assert.Equal(t, 1, n)
}

func TestGetUser(t *testing.T) {
	uc, _ := newUseCases()
	created := mustCreate(t, uc, "a@x.com", "A")

	got, err := uc.GetUser(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = uc.GetUser(context.Background(), "nope")
	assert.True(t, domain.IsNotFound(err))
	var nf *domain.EntityNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "nope", nf.ID)
}

func TestListUsersPagination(t *testing.T) {
	uc, _ := newUseCases()
	for _, e := range []string{"1@x.com", "2@x.com", "3@x.com", "4@x.com", "5@x.com"} {
		mustCreate(t, uc, e, e)
	}
	ctx := context.Background()

	page, err := uc.ListUsers(ctx, ListUsersQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)

	tail, _ := uc.ListUsers(ctx, ListUsersQuery{Limit: 2, Offset: 4})
	assert.Equal(t, 5, tail.Total)
	assert.Len(t, tail.Data, 1)

	empty, _ := uc.ListUsers(ctx, ListUsersQuery{Limit: 2, Offset: 10})
	assert.Equal(t, 5, empty.Total)
	assert.NotNil(t, empty.Data)
	assert.Empty(t, empty.Data)
}

func TestListUsersDefaultsAndClamp(t *testing.T) {
	uc, _ := newUseCases()
	ctx := context.Background()

	res, err := uc.ListUsers(ctx, ListUsersQuery{})
	require.NoError(t, err)
	assert.Equal(t, DefaultListLimit, res.Limit)
	assert.Equal(t, 0, res.Offset)

	res, _ = uc.ListUsers(ctx, ListUsersQuery{Limit: 1000, Offset: -3})
	assert.Equal(t, MaxListLimit, res.Limit)
	assert.Equal(t, 0, res.Offset)
}

func TestListUsersStatusFilter(t *testing.T) {
	uc, r := newUseCases()
	a := mustCreate(t, uc, "a@x.com", "A")
	mustCreate(t, uc, "b@x.com", "B")
	ctx := context.Background()

	u, _ := r.FindByID(ctx, a.ID)
	u.Status = entity.StatusInactive
	_, err := r.Update(ctx, *u)
	require.NoError(t, err)

	inactive := entity.StatusInactive
	res, err := uc.ListUsers(ctx, ListUsersQuery{Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Data, 1)
	assert.Equal(t, a.ID, res.Data[0].ID)
}

func TestUpdateUserNameOnly(t *testing.T) {
	uc, r := newUseCases()
	created := mustCreate(t, uc, "a@x.com", "A")

	res, err := uc.UpdateUser(context.Background(), created.ID, UpdateUserRequest{Name: strPtr("B")})

	require.NoError(t, err)
	assert.Equal(t, "B", res.Name)
	assert.Equal(t, "a@x.com", res.Email)
	assert.True(t, res.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, res.CreatedAt)
	assert.Equal(t, 2, r.writes)
}

func TestUpdateUserEmailOnly(t *testing.T) {
	uc, _ := newUseCases()
	created := mustCreate(t, uc, "a@x.com", "A")

	res, err := uc.UpdateUser(context.Background(), created.ID, UpdateUserRequest{Email: strPtr("new@x.com")})

	require.NoError(t, err)
	assert.Equal(t, "new@x.com", res.Email)
	assert.Equal(t, "A", res.Name)
	assert.True(t, res.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdateUserTimestampsStrictlyIncrease(t *testing.T) {
	uc, _ := newUseCases()
	created := mustCreate(t, uc, "a@x.com", "A")
	ctx := context.Background()

	prev := created.UpdatedAt
	for i := 0; i < 5; i++ {
		res, err := uc.UpdateUser(ctx, created.ID, UpdateUserRequest{Name: strPtr("A")})
		require.NoError(t, err)
		assert.True(t, res.UpdatedAt.After(prev))
		prev = res.UpdatedAt
	}
}

func TestUpdateUserEmailTakenByOther(t *testing.T) {
	uc, r := newUseCases()
	mustCreate(t, uc, "a@x.com", "A")
	b := mustCreate(t, uc, "b@x.com", "B")

	_, err := uc.UpdateUser(context.Background(), b.ID, UpdateUserRequest{Email: strPtr("a@x.com")})

	assert.True(t, domain.IsAlreadyExists(err))
	assert.Equal(t, 2, r.writes)
}

func TestUpdateUserOwnEmail(t *testing.T) {
	uc, _ := newUseCases()
	a := mustCreate(t, uc, "a@x.com", "A")

	res, err := uc.UpdateUser(context.Background(), a.ID, UpdateUserRequest{Email: strPtr("a@x.com"), Name: strPtr("A2")})

	require.NoError(t, err)
	assert.Equal(t, "a@x.com", res.Email)
	assert.Equal(t, "A2", res.Name)
}

func TestUpdateUserNotFound(t *testing.T) {
	uc, r := newUseCases()

	_, err := uc.UpdateUser(context.Background(), "nope", UpdateUserRequest{Name: strPtr("X")})

	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, 0, r.writes)
}

func TestUpdateUserDoesNotRecreateConcurrentlyDeletedUser(t *testing.T) {
	uc, r := newUseCases()
	pub := &fakePublisher{}
	uc.Events = pub
	created := mustCreate(t, uc, "a@x.com", "A")
	r.vanishAfterRead = true
	ctx := context.Background()

	_, err := uc.UpdateUser(ctx, created.ID, UpdateUserRequest{Name: strPtr("B")})

	assert.True(t, domain.IsNotFound(err))
	r.vanishAfterRead = false
	got, err := r.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	n, _ := r.Count(ctx, nil)
	assert.Equal(t, 0, n)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.UserCreated, pub.events[0].Type)
}

func TestDeleteUser(t *testing.T) {
	uc, r := newUseCases()
	a := mustCreate(t, uc, "a@x.com", "A")
	ctx := context.Background()

	require.NoError(t, uc.DeleteUser(ctx, a.ID))
	assert.Equal(t, 1, r.deletes)

	_, err := uc.GetUser(ctx, a.ID)
	assert.True(t, domain.IsNotFound(err))

	err = uc.DeleteUser(ctx, a.ID)
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, 1, r.deletes)
}

func TestSideEffects(t *testing.T) {
	uc, _ := newUseCases()
	idx := newFakeIndexer()
	pub := &fakePublisher{}
	uc.Indexer, uc.Events = idx, pub
	ctx := context.Background()

	a := mustCreate(t, uc, "a@x.com", "A")
	_, err := uc.UpdateUser(ctx, a.ID, UpdateUserRequest{Name: strPtr("B")})
	require.NoError(t, err)
	require.NoError(t, uc.DeleteUser(ctx, a.ID))

	require.Len(t, pub.events, 3)
	assert.Equal(t, events.UserCreated, pub.events[0].Type)
	assert.Equal(t, events.UserUpdated, pub.events[1].Type)
	assert.Equal(t, []string{"name"}, pub.events[1].Changes)
	assert.Equal(t, events.UserDeleted, pub.events[2].Type)
	assert.Equal(t, a.ID, pub.events[2].UserID)
	assert.Equal(t, "B", idx.indexed[a.ID].Name)
	assert.Equal(t, []string{a.ID}, idx.removed)
}

func TestSideEffectFailuresDoNotFailMutation(t *testing.T) {
	uc, _ := newUseCases()
	boom := errors.New("boom")
	idx := newFakeIndexer()
	idx.err = boom
	uc.Indexer, uc.Events = idx, &fakePublisher{err: boom}

	res, err := uc.CreateUser(context.Background(), CreateUserRequest{Email: "a@x.com", Name: "A"})
	require.NoError(t, err)
	assert.NoError(t, uc.DeleteUser(context.Background(), res.ID))
}

func TestSearchUsers(t *testing.T) {
	uc, _ := newUseCases()
	ctx := context.Background()

	none, err := uc.SearchUsers(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	uc.Indexer = newFakeIndexer()
	mustCreate(t, uc, "alice@x.com", "Alice")
	mustCreate(t, uc, "bob@x.com", "Bob")

	hits, err := uc.SearchUsers(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "alice@x.com", hits[0].Email)
}

func TestExportUsers(t *testing.T) {
	uc, _ := newUseCases()
	ctx := context.Background()

	_, err := uc.ExportUsers(ctx)
	assert.ErrorIs(t, err, ErrExportNotConfigured)

	store := &fakeStore{}
	uc.Snapshots = store
	mustCreate(t, uc, "a@x.com", "A")
	mustCreate(t, uc, "b@x.com", "B")

	res, err := uc.ExportUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, store.path, res.Object)
	assert.True(t, strings.HasPrefix(res.Object, "exports/users-"))
	assert.True(t, strings.HasSuffix(res.URL, res.Object))
	assert.Equal(t, "application/x-ndjson", store.contentType)

	lines := bytes.Split(bytes.TrimSpace(store.body), []byte("\n"))
	require.Len(t, lines, 2)
	var first UserResponse
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.NotEmpty(t, first.ID)
}

package cache

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-user-service/internal/domain/entity"
	"github.com/oksasatya/go-user-service/internal/domain/repository"
	"github.com/oksasatya/go-user-service/pkg/helpers"
)

func userKey(id string) string {
	return "user:cache:" + id
}

// fenceKey holds the UpdatedAt (unix micros) of the last write, so a slower read cannot
// put an older row back after the write evicted it.
func fenceKey(id string) string {
	return "user:cache:fence:" + id
}

// deleted users fence out every row
const deletedFence = math.MaxInt64

// stores ARGV[1] only if no fence is newer than the row's UpdatedAt (ARGV[3])
var storeScript = redis.NewScript(`
local fence = redis.call("GET", KEYS[2])
if fence and tonumber(fence) > tonumber(ARGV[3]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

type cachedUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRepository is a read-through Redis cache for FindByID in front of another repository.
// Update and Delete evict the entry and leave a fence so a concurrent miss cannot refill it
// with the older row. Redis failures are logged and the inner repository answers instead.
type UserRepository struct {
	inner  repository.UserRepository
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *logrus.Logger
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository(inner repository.UserRepository, rdb redis.Cmdable, ttl time.Duration, logger *logrus.Logger) *UserRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &UserRepository{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var cu cachedUser
	hit, err := helpers.RedisGetJSON(ctx, r.rdb, userKey(id), &cu)
	if err != nil {
		r.warn(err, id, "user cache read failed")
	}
	if hit {
		u := entity.User{
			ID:        cu.ID,
			Email:     cu.Email,
			Name:      cu.Name,
			Status:    entity.Status(cu.Status),
			CreatedAt: cu.CreatedAt,
			UpdatedAt: cu.UpdatedAt,
		}
		return &u, nil
	}

	u, err := r.inner.FindByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	r.store(ctx, *u)
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.inner.FindByEmail(ctx, email)
}

func (r *UserRepository) FindAll(ctx context.Context, limit, offset int, status *entity.Status) ([]entity.User, error) {
	return r.inner.FindAll(ctx, limit, offset, status)
}

func (r *UserRepository) Count(ctx context.Context, status *entity.Status) (int, error) {
	return r.inner.Count(ctx, status)
}

func (r *UserRepository) Create(ctx context.Context, u entity.User) (entity.User, error) {
	return r.inner.Create(ctx, u)
}

func (r *UserRepository) Update(ctx context.Context, u entity.User) (entity.User, error) {
	saved, err := r.inner.Update(ctx, u)
	if err != nil {
		return saved, err
	}
	r.evict(ctx, saved.ID, saved.UpdatedAt.UnixMicro())
	return saved, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id, deletedFence)
	return nil
}

func (r *UserRepository) store(ctx context.Context, u entity.User) {
	b, err := json.Marshal(cachedUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	})
	if err != nil {
		r.warn(err, u.ID, "user cache encode failed")
		return
	}
	keys := []string{userKey(u.ID), fenceKey(u.ID)}
	if err := storeScript.Run(ctx, r.rdb, keys, b, r.ttl.Milliseconds(), u.UpdatedAt.UnixMicro()).Err(); err != nil {
		r.warn(err, u.ID, "user cache write failed")
	}
}

// evict raises the fence before dropping the entry; a read racing the write then sees the fence.
func (r *UserRepository) evict(ctx context.Context, id string, fence int64) {
	if err := helpers.RedisSetJSON(ctx, r.rdb, fenceKey(id), fence, r.ttl); err != nil {
		r.warn(err, id, "user cache fence failed")
	}
	if err := helpers.RedisDel(ctx, r.rdb, userKey(id)); err != nil {
		r.warn(err, id, "user cache evict failed")
	}
}

func (r *UserRepository) warn(err error, id, msg string) {
	if r.logger != nil {
		r.logger.WithError(err).WithField("user_id", id).Warn(msg)
	}
}

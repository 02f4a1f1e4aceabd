package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-user-service/internal/domain"
	"github.com/oksasatya/go-user-service/internal/domain/entity"
	"github.com/oksasatya/go-user-service/internal/domain/repository"
)

const uniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool (and pgx.Tx) the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM `+usersTable+` WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM `+usersTable+` WHERE email = $1`, email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg string) (*entity.User, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[userModel])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u := m.toEntity()
	return &u, nil
}

func (r *UserRepository) FindAll(ctx context.Context, limit, offset int, status *entity.Status) ([]entity.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM `+usersTable+`
		WHERE ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset, statusArg(status))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[userModel])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	out := make([]entity.User, len(models))
	for i, m := range models {
		out[i] = m.toEntity()
	}
	return out, nil
}

func (r *UserRepository) Count(ctx context.Context, status *entity.Status) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM `+usersTable+` WHERE ($1::text IS NULL OR status = $1)
	`, statusArg(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Create inserts a new row. The email unique constraint is the authority on duplicates.
func (r *UserRepository) Create(ctx context.Context, u entity.User) (entity.User, error) {
	m := newUserModel(u)
	rows, err := r.db.Query(ctx, `
		INSERT INTO `+usersTable+` (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns+`
	`, m.ID, m.Email, m.Name, m.Status, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return entity.User{}, translateError(err, u)
	}
	saved, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[userModel])
	if err != nil {
		return entity.User{}, translateError(err, u)
	}
	return saved.toEntity(), nil
}

// Update rewrites the mutable columns of an existing row; a row deleted meanwhile is not recreated.
func (r *UserRepository) Update(ctx context.Context, u entity.User) (entity.User, error) {
	m := newUserModel(u)
	rows, err := r.db.Query(ctx, `
		UPDATE `+usersTable+`
		SET email = $2, name = $3, status = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+userColumns+`
	`, m.ID, m.Email, m.Name, m.Status, m.UpdatedAt)
	if err != nil {
		return entity.User{}, translateError(err, u)
	}
	saved, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[userModel])
	if err != nil {
		return entity.User{}, translateError(err, u)
	}
	return saved.toEntity(), nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Exec(ctx, `DELETE FROM `+usersTable+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.RowsAffected() == 0 {
		return domain.NewUserNotFound(id)
	}
	return nil
}

func statusArg(status *entity.Status) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}

func translateError(err error, u entity.User) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewUserNotFound(u.ID)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == usersEmailUniqueFK {
		return domain.NewUserEmailTaken(u.Email)
	}
	return fmt.Errorf("write user: %w", err)
}

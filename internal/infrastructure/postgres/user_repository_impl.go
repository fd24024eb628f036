package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wiradharma/go-auth-backend/internal/domain/entity"
	"github.com/wiradharma/go-auth-backend/internal/domain/repository"
	"github.com/wiradharma/go-auth-backend/pkg/apperrors"
)

const uniqueViolation = "23505"

const userColumns = `id, name, username, email, password_hash, google_id, role, refresh_token, phone, address, avatar_url, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, username, email, password_hash, google_id, role)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Username, u.Email, u.Password, u.GoogleID, u.Role)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.Wrap(apperrors.With(apperrors.ErrConflict, "email or username already exists"), err)
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getBy(ctx, `WHERE email = $1`, email)
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*entity.User, error) {
	return r.getBy(ctx, `WHERE google_id = $1`, googleID)
}

func (r *UserRepository) getBy(ctx context.Context, where string, arg any) (*entity.User, error) {
	u := &entity.User{}
	var googleID, refreshToken, phone, address, avatarURL sql.NullString

	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, arg)
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.Password, &googleID,
		&u.Role, &refreshToken, &phone, &address, &avatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	u.GoogleID = googleID.String
	u.RefreshToken = refreshToken.String
	u.Phone = phone.String
	u.Address = address.String
	u.AvatarURL = avatarURL.String
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $1, email = $2, phone = $3, address = $4, avatar_url = $5, updated_at = $6
		WHERE id = $7
	`, u.Name, u.Email, u.Phone, u.Address, u.AvatarURL, u.UpdatedAt, u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.Wrap(apperrors.With(apperrors.ErrConflict, "email already exists"), err)
		}
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2
	`, token, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// RotateRefreshToken is the per-account serialization point for refresh:
// the compare-and-swap on refresh_token guarantees that of two concurrent
// rotations with the same stale token exactly one observes a match.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id, old, new string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token = $1, updated_at = now()
		WHERE id = $2 AND refresh_token = $3
	`, new, id, old)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return apperrors.With(apperrors.ErrUnauthorized, "refresh token is expired or used")
	}
	return nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	// No rows-affected check: clearing an already cleared token is fine.
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1
	`, id)
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)

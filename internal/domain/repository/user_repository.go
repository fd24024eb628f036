package repository

import (
	"context"

	"github.com/wiradharma/go-auth-backend/internal/domain/entity"
)

// UserRepository is the credential store contract. Lookups return
// apperrors.ErrNotFound on absence; Create returns apperrors.ErrConflict
// when the email or username is already taken.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetRefreshToken unconditionally stores token as the account's active
	// refresh token, superseding any prior one.
	SetRefreshToken(ctx context.Context, id, token string) error

	// RotateRefreshToken swaps old for new only if old is still the stored
	// token. It returns apperrors.ErrUnauthorized when the stored value no
	// longer matches, which is how a reused or concurrently rotated token
	// is detected.
	RotateRefreshToken(ctx context.Context, id, old, new string) error

	// ClearRefreshToken removes the active refresh token. Idempotent.
	ClearRefreshToken(ctx context.Context, id string) error
}

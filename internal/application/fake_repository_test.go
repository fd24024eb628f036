package application

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/wiradharma/go-auth-backend/internal/domain/entity"
	"github.com/wiradharma/go-auth-backend/pkg/apperrors"
)

// fakeUserRepository is an in-memory credential store with the same
// uniqueness and compare-and-swap semantics as the Postgres implementation.
type fakeUserRepository struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*entity.User

	failSetRefreshToken bool
	lookupErr           error
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[string]*entity.User)}
}

func (r *fakeUserRepository) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return apperrors.With(apperrors.ErrConflict, "email or username already exists")
		}
		if u.GoogleID != "" && existing.GoogleID == u.GoogleID {
			return apperrors.With(apperrors.ErrConflict, "google account already linked")
		}
	}
	r.nextID++
	u.ID = strconv.Itoa(r.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepository) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepository) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepository) GetByGoogleID(_ context.Context, googleID string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepository) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.Name = u.Name
	stored.Email = u.Email
	stored.Phone = u.Phone
	stored.Address = u.Address
	stored.AvatarURL = u.AvatarURL
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Password = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepository) SetRefreshToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSetRefreshToken {
		return apperrors.Wrap(apperrors.ErrInternal, context.DeadlineExceeded)
	}
	u, ok := r.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.RefreshToken = token
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepository) RotateRefreshToken(_ context.Context, id, old, new string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.RefreshToken != old {
		return apperrors.With(apperrors.ErrUnauthorized, "refresh token is expired or used")
	}
	u.RefreshToken = new
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepository) ClearRefreshToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.RefreshToken = ""
	}
	return nil
}

func (r *fakeUserRepository) storedRefreshToken(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u.RefreshToken
	}
	return ""
}

func (r *fakeUserRepository) storedPasswordHash(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u.Password
	}
	return ""
}

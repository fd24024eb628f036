package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/wiradharma/go-auth-backend/internal/domain/entity"
	"github.com/wiradharma/go-auth-backend/pkg/apperrors"
	"github.com/wiradharma/go-auth-backend/pkg/helpers"
)

func profileKey(userID string) string {
	return "user:profile:" + userID
}

// profileDoc is the cached (and ES-indexed) projection of an account.
// Password hash and refresh token are never part of it.
type profileDoc struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      entity.Role `json:"role"`
	Phone     string      `json:"phone,omitempty"`
	Address   string      `json:"address,omitempty"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func toProfileDoc(u *entity.User) profileDoc {
	return profileDoc{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		Phone:     u.Phone,
		Address:   u.Address,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (d profileDoc) toUser() *entity.User {
	return &entity.User{
		ID:        d.ID,
		Name:      d.Name,
		Username:  d.Username,
		Email:     d.Email,
		Role:      d.Role,
		Phone:     d.Phone,
		Address:   d.Address,
		AvatarURL: d.AvatarURL,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// GetProfile returns the sanitized account, read through the Redis cache.
func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	if s.Redis != nil {
		var doc profileDoc
		if ok, err := helpers.RedisGetJSON(ctx, s.Redis, profileKey(userID), &doc); err == nil && ok {
			return doc.toUser(), nil
		}
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.With(apperrors.ErrNotFound, "user not found")
		}
		return nil, err
	}
	s.cacheProfile(ctx, u)
	return u, nil
}

type UpdateProfileInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// UpdateProfile persists in-place mutations of the account's profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.With(apperrors.ErrNotFound, "user not found")
		}
		return nil, err
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if in.Phone != "" {
		u.Phone = in.Phone
	}
	if in.Address != "" {
		u.Address = in.Address
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.cacheProfile(ctx, u)
	_ = s.indexUser(ctx, u)
	return u, nil
}

// UploadAvatar stores the avatar in GCS and records its public URL.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", apperrors.With(apperrors.ErrInternal, "avatar storage not configured")
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.With(apperrors.ErrNotFound, "user not found")
		}
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternal, err)
	}
	u.AvatarURL = url
	if err := s.Repo.Update(ctx, u); err != nil {
		return "", err
	}
	s.cacheProfile(ctx, u)
	_ = s.indexUser(ctx, u)
	return url, nil
}

func (s *Service) cacheProfile(ctx context.Context, u *entity.User) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisSetJSON(ctx, s.Redis, profileKey(u.ID), toProfileDoc(u), s.CacheTTL); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("profile cache write failed")
	}
}

func (s *Service) invalidateProfileCache(ctx context.Context, userID string) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisDel(ctx, s.Redis, profileKey(userID)); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("profile cache invalidation failed")
	}
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	b, _ := json.Marshal(toProfileDoc(u))
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a simple multi_match search on email, name, and username.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name", "username"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/wiradharma/go-auth-backend/internal/domain/entity"
	repo "github.com/wiradharma/go-auth-backend/internal/domain/repository"
	"github.com/wiradharma/go-auth-backend/pkg/apperrors"
	"github.com/wiradharma/go-auth-backend/pkg/googleid"
	"github.com/wiradharma/go-auth-backend/pkg/helpers"
)

// Service implements the token lifecycle against the credential store:
// registration, credential verification, access/refresh pair issuance,
// rotation-on-use refresh, password change, logout, and Google login.
type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	Google       googleid.Verifier
	GCS          *storage.Client
	GCSBucket    string
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	CacheTTL     time.Duration
}

func NewService(repo repo.UserRepository, jwt *helpers.JWTManager, google googleid.Verifier, gcs *storage.Client, gcsBucket string, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, cacheTTL time.Duration) *Service {
	return &Service{
		Repo:         repo,
		JWT:          jwt,
		Google:       google,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		CacheTTL:     cacheTTL,
	}
}

// TokenPair is an access/refresh token pair with their expiry instants.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
	Role     entity.Role
}

// Register creates a new account with a freshly hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Username == "" || in.Email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, apperrors.With(apperrors.ErrValidation, "all fields are required")
	}
	if in.Role == "" {
		in.Role = entity.RoleUser
	}
	if !in.Role.Valid() {
		return nil, apperrors.With(apperrors.ErrValidation, "invalid role")
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	u := &entity.User{
		Name:     in.Name,
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
		Role:     in.Role,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}

	_ = s.indexUser(ctx, u)
	return u, nil
}

// mintPair signs a fresh access/refresh pair for u without persisting it.
func (s *Service) mintPair(u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.ErrTokenIssuance, err)
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.ErrTokenIssuance, err)
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// IssueTokenPair mints a pair for the account and stores the refresh token,
// superseding any prior one. After success exactly one refresh token is
// valid for the account. On any failure no token is considered issued.
func (s *Service) IssueTokenPair(ctx context.Context, userID string) (TokenPair, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return TokenPair{}, apperrors.With(apperrors.ErrNotFound, "user not found")
		}
		return TokenPair{}, apperrors.Wrap(apperrors.ErrTokenIssuance, err)
	}
	pair, err := s.mintPair(u)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.Repo.SetRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("persist refresh token failed")
		}
		return TokenPair{}, apperrors.Wrap(apperrors.ErrTokenIssuance, err)
	}
	return pair, nil
}

// Login verifies email/password and issues a token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, TokenPair, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, TokenPair{}, apperrors.ErrInvalidCredentials
	}
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, TokenPair{}, apperrors.ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, TokenPair{}, apperrors.ErrInvalidCredentials
	}
	pair, err := s.IssueTokenPair(ctx, u.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh validates a presented refresh token and rotates it. The stored
// token is swapped for the new one with a compare-and-swap, so a reused
// token, or the loser of two concurrent refreshes, fails Unauthorized.
func (s *Service) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	if presented == "" {
		return TokenPair{}, apperrors.With(apperrors.ErrUnauthorized, "unauthorized request")
	}
	claims, err := s.JWT.ParseRefreshToken(presented)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(apperrors.With(apperrors.ErrUnauthorized, "invalid refresh token"), err)
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return TokenPair{}, apperrors.With(apperrors.ErrUnauthorized, "invalid refresh token")
		}
		return TokenPair{}, err
	}
	if u.RefreshToken != presented {
		return TokenPair{}, apperrors.With(apperrors.ErrUnauthorized, "refresh token is expired or used")
	}

	pair, err := s.mintPair(u)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.Repo.RotateRefreshToken(ctx, u.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return TokenPair{}, err
		}
		return TokenPair{}, apperrors.Wrap(apperrors.ErrTokenIssuance, err)
	}
	return pair, nil
}

// ChangePassword re-hashes and stores the new password after verifying the
// old one. On a failed check the stored hash is left untouched.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !helpers.CompareHashAndPassword(u.Password, oldPassword) {
		return apperrors.With(apperrors.ErrInvalidCredentials, "invalid old password")
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if err := s.Repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.invalidateProfileCache(ctx, userID)
	return nil
}

// Logout clears the account's refresh token. Idempotent.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.Repo.ClearRefreshToken(ctx, userID); err != nil {
		return err
	}
	s.invalidateProfileCache(ctx, userID)
	return nil
}

// LoginWithGoogle exchanges a verified Google ID token for a local account
// and a token pair. The account is created on first sight, keyed by the
// Google subject id, and matched by it thereafter.
func (s *Service) LoginWithGoogle(ctx context.Context, rawIDToken string) (*entity.User, TokenPair, error) {
	if rawIDToken == "" {
		return nil, TokenPair{}, apperrors.With(apperrors.ErrUnauthorized, "unauthorized request")
	}
	ident, err := s.Google.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, TokenPair{}, apperrors.Wrap(apperrors.With(apperrors.ErrUnauthorized, "invalid google token"), err)
	}

	u, err := s.Repo.GetByGoogleID(ctx, ident.Subject)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, TokenPair{}, err
		}
		u, err = s.createGoogleUser(ctx, ident)
		if err != nil {
			return nil, TokenPair{}, err
		}
	}

	pair, err := s.IssueTokenPair(ctx, u.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

func (s *Service) createGoogleUser(ctx context.Context, ident *googleid.Identity) (*entity.User, error) {
	if ident.Email == "" {
		return nil, apperrors.With(apperrors.ErrValidation, "google account has no email")
	}
	// No local password exists for Google accounts; the placeholder hash is
	// derived from random bytes so it can never match a presented password.
	secret, err := helpers.RandomSecret(32)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	hash, err := helpers.HashPassword(secret)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	name := ident.Name
	if name == "" {
		name = ident.Email
	}
	u := &entity.User{
		Name:     name,
		Username: strings.Split(ident.Email, "@")[0],
		Email:    ident.Email,
		Password: hash,
		GoogleID: ident.Subject,
		Role:     entity.RoleUser,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}
	_ = s.indexUser(ctx, u)
	return u, nil
}

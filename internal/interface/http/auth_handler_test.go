package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiradharma/go-auth-backend/internal/application"
	"github.com/wiradharma/go-auth-backend/internal/domain/entity"
	"github.com/wiradharma/go-auth-backend/internal/interface/middleware"
	"github.com/wiradharma/go-auth-backend/pkg/apperrors"
	"github.com/wiradharma/go-auth-backend/pkg/googleid"
	"github.com/wiradharma/go-auth-backend/pkg/helpers"
	"github.com/wiradharma/go-auth-backend/pkg/validation"
)

// memoryRepo mirrors the Postgres repository semantics in memory,
// including the refresh-token compare-and-swap.
type memoryRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*entity.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]*entity.User)}
}

func (r *memoryRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.users {
		if e.Email == u.Email || e.Username == u.Username {
			return apperrors.With(apperrors.ErrConflict, "email or username already exists")
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

func (r *memoryRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryRepo) GetByGoogleID(_ context.Context, googleID string) (*entity.User, error) {
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

func (r *memoryRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.Name, stored.Email = u.Name, u.Email
	stored.Phone, stored.Address, stored.AvatarURL = u.Phone, u.Address, u.AvatarURL
	return nil
}

func (r *memoryRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Password = hash
		return nil
	}
	return apperrors.ErrNotFound
}

func (r *memoryRepo) SetRefreshToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.RefreshToken = token
		return nil
	}
	return apperrors.ErrNotFound
}

func (r *memoryRepo) RotateRefreshToken(_ context.Context, id, old, new string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.RefreshToken != old {
		return apperrors.With(apperrors.ErrUnauthorized, "refresh token is expired or used")
	}
	u.RefreshToken = new
	return nil
}

func (r *memoryRepo) ClearRefreshToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.RefreshToken = ""
	}
	return nil
}

type staticVerifier struct{ identity *googleid.Identity }

func (v *staticVerifier) Verify(_ context.Context, _ string) (*googleid.Identity, error) {
	if v.identity == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return v.identity, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memoryRepo, *application.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	repo := newMemoryRepo()
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	svc := application.NewService(repo, jwt, &staticVerifier{}, nil, "", nil, nil, nil, "", 0)

	authHandler := NewAuthHandler(svc, nil, "localhost", false)
	userHandler := NewUserHandler(svc, nil)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	api := r.Group("/api")

	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	api.POST("/refresh", authHandler.Refresh)
	api.POST("/auth/google", authHandler.GoogleLogin)

	auth := api.Group("/")
	auth.Use(middleware.Auth(jwt))
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/change-password", authHandler.ChangePassword)
	auth.GET("/profile", userHandler.GetProfile)
	auth.PUT("/profile", userHandler.UpdateProfile)

	return r, repo, svc
}

func doJSON(r *gin.Engine, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookieByName(w *httptest.ResponseRecorder, name string) *http.Cookie {
	res := http.Response{Header: w.Header()}
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func registerBody() gin.H {
	return gin.H{"name": "A", "email": "a@x.com", "username": "a", "password": "secret12"}
}

func TestRegisterEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/api/register", registerBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "a@x.com", resp.Data["email"])
	assert.NotContains(t, resp.Data, "password")
	assert.NotContains(t, resp.Data, "refresh_token")

	// Duplicate email conflicts.
	w = doJSON(r, http.MethodPost, "/api/register", registerBody())
	assert.Equal(t, http.StatusConflict, w.Code)

	// Short password fails binding.
	w = doJSON(r, http.MethodPost, "/api/register", gin.H{
		"name": "B", "email": "b@x.com", "username": "b", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/register", registerBody()).Code)

	w := doJSON(r, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "secret12"})
	require.Equal(t, http.StatusOK, w.Code)

	access := cookieByName(w, "access_token")
	refresh := cookieByName(w, "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)

	var resp struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, access.Value, resp.Data.AccessToken)
	assert.Equal(t, refresh.Value, resp.Data.RefreshToken)

	w = doJSON(r, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "wrongpass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshEndpointRotation(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/register", registerBody()).Code)

	login := doJSON(r, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "secret12"})
	require.Equal(t, http.StatusOK, login.Code)
	tokenA := cookieByName(login, "refresh_token")
	require.NotNil(t, tokenA)

	// Refresh via cookie yields a new pair.
	w := doJSON(r, http.MethodPost, "/api/refresh", nil, tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	tokenB := cookieByName(w, "refresh_token")
	require.NotNil(t, tokenB)
	assert.NotEqual(t, tokenA.Value, tokenB.Value)

	// Reusing token A fails.
	w = doJSON(r, http.MethodPost, "/api/refresh", nil, tokenA)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Refresh via request body works too.
	w = doJSON(r, http.MethodPost, "/api/refresh", gin.H{"refresh_token": tokenB.Value})
	assert.Equal(t, http.StatusOK, w.Code)

	// No token at all.
	w = doJSON(r, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/register", registerBody()).Code)

	login := doJSON(r, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "secret12"})
	access := cookieByName(login, "access_token")
	refresh := cookieByName(login, "refresh_token")
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	// Logout requires the access token.
	w := doJSON(r, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/logout", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := cookieByName(w, "access_token")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	// The last issued refresh token is dead after logout.
	w = doJSON(r, http.MethodPost, "/api/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/register", registerBody()).Code)

	login := doJSON(r, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "secret12"})
	access := cookieByName(login, "access_token")
	require.NotNil(t, access)

	w := doJSON(r, http.MethodPost, "/api/change-password",
		gin.H{"old_password": "wrongpass", "new_password": "brandnew12"}, access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/change-password",
		gin.H{"old_password": "secret12", "new_password": "brandnew12"}, access)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnauthorized,
		doJSON(r, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "secret12"}).Code)
	assert.Equal(t, http.StatusOK,
		doJSON(r, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "brandnew12"}).Code)
}

func TestGoogleLoginEndpoint(t *testing.T) {
	r, repo, svc := newTestRouter(t)
	svc.Google = &staticVerifier{identity: &googleid.Identity{Subject: "sub-1", Email: "g@x.com", Name: "G"}}

	w := doJSON(r, http.MethodPost, "/api/auth/google", gin.H{"id_token": "raw"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, cookieByName(w, "access_token"))
	require.NotNil(t, cookieByName(w, "refresh_token"))

	first, err := repo.GetByGoogleID(context.Background(), "sub-1")
	require.NoError(t, err)

	// Second login reuses the account.
	w = doJSON(r, http.MethodPost, "/api/auth/google", gin.H{"id_token": "raw"})
	require.Equal(t, http.StatusOK, w.Code)
	again, err := repo.GetByGoogleID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// Unverifiable token.
	svc.Google = &staticVerifier{}
	w = doJSON(r, http.MethodPost, "/api/auth/google", gin.H{"id_token": "raw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/register", registerBody()).Code)

	login := doJSON(r, http.MethodPost, "/api/login", gin.H{"email": "a@x.com", "password": "secret12"})
	access := cookieByName(login, "access_token")
	require.NotNil(t, access)

	w := doJSON(r, http.MethodGet, "/api/profile", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "a@x.com", resp.Data["email"])
	assert.NotContains(t, resp.Data, "password")

	w = doJSON(r, http.MethodPut, "/api/profile", gin.H{"name": "Renamed", "phone": "+62812"}, access)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Renamed", resp.Data["name"])

	// Tampered access token is rejected.
	bad := &http.Cookie{Name: "access_token", Value: access.Value + "x"}
	w = doJSON(r, http.MethodGet, "/api/profile", nil, bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wiradharma/go-auth-backend/internal/application"
	"github.com/wiradharma/go-auth-backend/internal/domain/entity"
	"github.com/wiradharma/go-auth-backend/pkg/apperrors"
	"github.com/wiradharma/go-auth-backend/pkg/helpers"
	"github.com/wiradharma/go-auth-backend/pkg/response"
	"github.com/wiradharma/go-auth-backend/pkg/validation"
)

// AuthHandler exposes the registration, login, refresh, logout,
// change-password, and Google login endpoints.
type AuthHandler struct {
	Svc     *application.Service
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAuthHandler(svc *application.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

// respondError surfaces a typed application error unmodified; unknown
// errors become a 500 and are logged with their cause.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	ae := apperrors.FromError(err)
	if ae.Status >= http.StatusInternalServerError && logger != nil {
		helpers.LogError(logger, "request failed", err, logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		})
	}
	response.Error[any](c, ae.Status, ae.Message, ae.Code)
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Role     string `json:"role" binding:"omitempty,role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,pwd"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

func tokenMeta(pair application.TokenPair) map[string]any {
	return map[string]any{
		"access_expires_at":  pair.AccessTokenExpiry,
		"refresh_expires_at": pair.RefreshTokenExpiry,
	}
}

// Register POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     entity.Role(req.Role),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, u.Sanitized(), "user created successfully", nil)
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"user":          u.Sanitized(),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "logged in successfully", tokenMeta(pair))
}

// Refresh POST /api/refresh — token from the cookie or the request body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented, _ := c.Cookie("refresh_token")
	if presented == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			presented = req.RefreshToken
		}
	}
	pair, err := h.Svc.Refresh(c.Request.Context(), presented)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "access token refreshed", tokenMeta(pair))
}

// Logout POST /api/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	uid := c.GetString("userID")
	if err := h.Svc.Logout(c.Request.Context(), uid); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		respondError(c, h.Logger, err)
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// ChangePassword POST /api/change-password (auth required)
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	uid := c.GetString("userID")
	if err := h.Svc.ChangePassword(c.Request.Context(), uid, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"changed": true}, "password changed successfully", nil)
}

// GoogleLogin POST /api/auth/google — exchanges a verified Google ID token
// for a local account and a token pair.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, pair, err := h.Svc.LoginWithGoogle(c.Request.Context(), req.IDToken)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"user":          u.Sanitized(),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "logged in successfully", tokenMeta(pair))
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/access"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/middleware"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type accountResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	AccountType     string    `json:"accountType"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	IsProtected     bool      `json:"isProtected"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newAccountResponse(account models.Account) accountResponse {
	return accountResponse{
		ID:              account.ID,
		Email:           account.Email,
		AccountType:     string(account.Type),
		IsEmailVerified: account.IsEmailVerified,
		CreatedAt:       account.CreatedAt,
	}
}

func (h HandlerSet) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	account, err := h.authService.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAccountResponse(account))
}

func (h HandlerSet) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP()); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "2FA code sent to your email."})
}

type verifyTwoFactorRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type sessionResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (h HandlerSet) VerifyTwoFactor(c *gin.Context) {
	var req verifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.authService.VerifyTwoFactor(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		AccessToken: session.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   session.ExpiresAt,
	})
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h HandlerSet) RequestPasswordReset(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "If the email exists, a reset link has been sent."})
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "Password updated successfully."})
}

type meResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	AccountType     string     `json:"accountType"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	Permissions     access.Set `json:"permissions"`
}

func (h HandlerSet) Me(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, meResponse{
		ID:              identity.Account.ID,
		Email:           identity.Account.Email,
		AccountType:     string(identity.Account.Type),
		IsEmailVerified: identity.Account.IsEmailVerified,
		Permissions:     identity.Capabilities,
	})
}

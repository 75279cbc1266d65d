package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/ratelimit"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/security"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/service"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// Messages are fixed per error so callers learn no more than the status.
var errorMappings = []errorMapping{
	{security.ErrPasswordTooLong, http.StatusBadRequest, "Password too long."},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{service.ErrChallengeNotInitialized, http.StatusUnauthorized, "2FA not initialized, please login again"},
	{service.ErrChallengeExpired, http.StatusUnauthorized, "2FA code expired, please login again"},
	{service.ErrChallengeMismatch, http.StatusUnauthorized, "Invalid 2FA code"},
	{service.ErrResetTokenInvalid, http.StatusBadRequest, "Invalid reset token"},
	{service.ErrResetTokenExpired, http.StatusBadRequest, "Reset token expired"},
	{security.ErrTokenExpired, http.StatusUnauthorized, "Invalid or expired token"},
	{security.ErrTokenInvalid, http.StatusUnauthorized, "Invalid or expired token"},
	{service.ErrAlreadyRegistered, http.StatusConflict, "Email already registered"},
	{service.ErrDeliveryFailed, http.StatusBadGateway, "Email is not configured or failed to send. Contact support."},
	{service.ErrAccountNotFound, http.StatusNotFound, "Account not found"},
	{service.ErrInvalidAccountType, http.StatusBadRequest, "Invalid account type"},
	{service.ErrForbiddenTransition, http.StatusForbidden, "Administrator type cannot be assigned"},
	{service.ErrProtectedAccount, http.StatusForbidden, "Account is protected"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{ratelimit.ErrRateLimited, http.StatusTooManyRequests, "Too many attempts, try again later"},
	{ratelimit.ErrRedisUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

func (h HandlerSet) writeError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.message})
			return
		}
	}

	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

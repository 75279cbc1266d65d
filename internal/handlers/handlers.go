package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/access"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/middleware"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/service"
)

// HealthCheck is a named dependency probe reported by the health endpoints.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HandlerSet struct {
	log          zerolog.Logger
	environment  string
	authService  *service.AuthService
	adminService *service.AdminService
	checks       []HealthCheck
}

func NewHandlerSet(
	log zerolog.Logger,
	environment string,
	auth *service.AuthService,
	admin *service.AdminService,
	checks ...HealthCheck,
) HandlerSet {
	return HandlerSet{
		log:          log,
		environment:  environment,
		authService:  auth,
		adminService: admin,
		checks:       checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/verify-2fa", h.VerifyTwoFactor)
		auth.POST("/request-password-reset", h.RequestPasswordReset)
		auth.POST("/reset-password", h.ResetPassword)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.authService))
		protected.GET("/me", h.Me)

		v1.POST("/leads", h.CaptureLead)
	}

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.authService),
		middleware.RequireCapability(access.CapAdmin),
	)
	admin.GET("/pending", h.AdminListPending)
	admin.GET("/accounts", h.AdminSearchAccounts)
	admin.POST("/account-type", h.AdminSetAccountType)
	admin.POST("/delete-account", h.AdminDeleteAccount)
	admin.GET("/roles", h.AdminRoles)
	admin.GET("/health", h.AdminHealth)
}

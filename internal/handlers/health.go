package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
	Environment  string            `json:"environment"`
}

func (h HandlerSet) probe(ctx context.Context) healthResponse {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:       "ok",
		Dependencies: make(map[string]string, len(h.checks)),
		Environment:  h.environment,
	}
	for _, check := range h.checks {
		status := "ok"
		if err := check.Ping(ctx); err != nil {
			status = "error"
			resp.Status = "degraded"
			h.log.Error().Err(err).Str("dependency", check.Name).Msg("health check failed")
		}
		resp.Dependencies[check.Name] = status
	}
	return resp
}

func (h HandlerSet) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.probe(c.Request.Context()))
}

type adminHealthResponse struct {
	healthResponse
	Accounts        int            `json:"accounts"`
	PendingAccounts int            `json:"pendingAccounts"`
	AccountsByType  map[string]int `json:"accountsByType"`
	Admins          int            `json:"allowlistedAdmins"`
	AdminsSource    string         `json:"allowlistSource"`
}

// AdminHealth adds account statistics to the dependency report.
func (h HandlerSet) AdminHealth(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	stats, err := h.adminService.Stats(c.Request.Context(), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	byType := make(map[string]int, len(stats.ByType))
	for t, n := range stats.ByType {
		byType[string(t)] = n
	}
	c.JSON(http.StatusOK, adminHealthResponse{
		healthResponse:  h.probe(c.Request.Context()),
		Accounts:        stats.Total,
		PendingAccounts: stats.Pending,
		AccountsByType:  byType,
		Admins:          stats.AllowlistSize,
		AdminsSource:    stats.AllowlistSource,
	})
}

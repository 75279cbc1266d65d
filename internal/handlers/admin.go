package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/middleware"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/service"
)

// adminAccount marks rows the management endpoints will refuse to change.
func (h HandlerSet) adminAccount(account models.Account) accountResponse {
	resp := newAccountResponse(account)
	resp.IsProtected = h.adminService.IsProtected(account)
	return resp
}

func (h HandlerSet) accountList(accounts []models.Account) gin.H {
	items := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, h.adminAccount(account))
	}
	return gin.H{"items": items}
}

func (h HandlerSet) actor(c *gin.Context) (service.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return identity, ok
}

func (h HandlerSet) AdminListPending(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	accounts, err := h.adminService.ListPending(c.Request.Context(), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.accountList(accounts))
}

func (h HandlerSet) AdminSearchAccounts(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	accounts, err := h.adminService.Search(c.Request.Context(), actor, c.Query("query"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.accountList(accounts))
}

type setAccountTypeRequest struct {
	AccountID   string `json:"accountId" binding:"required"`
	AccountType string `json:"accountType" binding:"required"`
}

func (h HandlerSet) AdminSetAccountType(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req setAccountTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	account, err := h.adminService.SetAccountType(c.Request.Context(), actor, req.AccountID, req.AccountType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.adminAccount(account))
}

type deleteAccountRequest struct {
	AccountID string `json:"accountId" binding:"required"`
}

func (h HandlerSet) AdminDeleteAccount(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.adminService.DeleteAccount(c.Request.Context(), actor, req.AccountID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminRoles(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	roles, err := h.adminService.Roles(actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matrix":          roles.Matrix,
		"overrides":       roles.Overrides,
		"assignableTypes": roles.AssignableTypes,
	})
}

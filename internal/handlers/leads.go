package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/service"
)

type leadRequest struct {
	Email         string            `json:"email" binding:"required"`
	Details       map[string]string `json:"details"`
	PreferredTime string            `json:"preferredTime"`
}

// CaptureLead stores a lead with its meeting request and mails the contact a link to set a password
// on their pending account.
func (h HandlerSet) CaptureLead(c *gin.Context) {
	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := h.authService.CaptureLead(c.Request.Context(), service.LeadSubmission{
		Email:         req.Email,
		Details:       req.Details,
		PreferredTime: req.PreferredTime,
	}); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"detail": "Thanks! Check your email to finish setting up your account."})
}

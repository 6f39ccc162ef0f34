package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
)

func (s *Server) ListRegistrations(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
		EventID   string `form:"event_id"`
		Status    string `form:"status"`
		Search    string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.registrationSvc.List(c.Request.Context(), registrationdomain.ListRequest{
		EventID:   strings.TrimSpace(query.EventID),
		Status:    strings.TrimSpace(query.Status),
		Search:    strings.TrimSpace(query.Search),
		From:      from,
		To:        to,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRegistrationByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reg, err := s.registrationSvc.Get(c.Request.Context(), registrationdomain.GetRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reg})
}

func (s *Server) ApproveRegistration(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reg, err := s.registrationSvc.Approve(c.Request.Context(), registrationdomain.GetRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := reg.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "registration.approve", "registration", &targetID, map[string]any{
			"event_id":          reg.EventID.String(),
			"confirmation_code": reg.ConfirmationCode,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": reg})
}

func (s *Server) CancelRegistration(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reg, err := s.registrationSvc.Cancel(c.Request.Context(), registrationdomain.CancelRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := reg.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "registration.cancel", "registration", &targetID, map[string]any{
			"event_id": reg.EventID.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": reg})
}

func (s *Server) ResendRegistrationConfirmation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.registrationSvc.Resend(c.Request.Context(), registrationdomain.ResendRequest{ID: id}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "sent"}})
}

func (s *Server) ListRegistrationAddOns(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	items, err := s.registrationSvc.ListAddOns(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetRegistrationSettings(c *gin.Context) {
	settings, err := s.registrationSvc.GetSettings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) UpdateRegistrationSettings(c *gin.Context) {
	var req registrationdomain.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings, err := s.registrationSvc.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "registration.settings_update", "registration", nil, map[string]any{
			"require_review_changed":   req.RequireReview != nil,
			"waitlist_enabled_changed": req.WaitlistEnabled != nil,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func isRegistrationValidationError(err error) bool {
	switch err {
	case registrationdomain.ErrInvalidOrganization,
		registrationdomain.ErrInvalidEvent,
		registrationdomain.ErrInvalidID,
		registrationdomain.ErrInvalidName,
		registrationdomain.ErrInvalidEmail,
		registrationdomain.ErrInvalidStatus,
		registrationdomain.ErrInvalidCurrency:
		return true
	default:
		return false
	}
}

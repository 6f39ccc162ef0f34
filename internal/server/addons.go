package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	addondomain "github.com/smallbiznis/eventra/internal/addon/domain"
)

func (s *Server) CreateAddOn(c *gin.Context) {
	var req addondomain.CreateAddOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.addonSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "addon.create", "addon", &targetID, map[string]any{
			"event_id": resp.EventID.String(),
			"name":     resp.Name,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAddOns(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	items, err := s.addonSvc.List(c.Request.Context(), addondomain.ListAddOnRequest{
		EventID: strings.TrimSpace(c.Query("event_id")),
		Active:  active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetAddOnByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.addonSvc.GetByID(c.Request.Context(), addondomain.GetAddOnRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAddOn(c *gin.Context) {
	var req addondomain.UpdateAddOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.addonSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ArchiveAddOn(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.addonSvc.Archive(c.Request.Context(), addondomain.GetAddOnRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "addon.archive", "addon", &targetID, nil)
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isAddOnValidationError(err error) bool {
	switch err {
	case addondomain.ErrInvalidOrganization,
		addondomain.ErrInvalidEvent,
		addondomain.ErrInvalidName,
		addondomain.ErrInvalidPrice,
		addondomain.ErrInvalidCurrency,
		addondomain.ErrInvalidCapacity,
		addondomain.ErrInvalidLogic,
		addondomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

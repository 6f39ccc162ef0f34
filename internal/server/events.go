package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
)

type createEventRequest struct {
	ClientID    string     `json:"client_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Timezone    string     `json:"timezone"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	MaxCapacity *int64     `json:"max_capacity,omitempty"`
}

type updateEventRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Timezone    *string    `json:"timezone,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	MaxCapacity *int64     `json:"max_capacity,omitempty"`
	ClientID    *string    `json:"client_id,omitempty"`
}

func (s *Server) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.eventSvc.Create(c.Request.Context(), eventdomain.CreateEventRequest{
		ClientID:    strings.TrimSpace(req.ClientID),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    strings.TrimSpace(req.Location),
		Timezone:    strings.TrimSpace(req.Timezone),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		MaxCapacity: req.MaxCapacity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "event.create", "event", &targetID, map[string]any{
			"title": resp.Title,
			"slug":  resp.Slug,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEvents(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		ClientID   string `form:"client_id"`
		Search     string `form:"search"`
		StartsFrom string `form:"starts_from"`
		StartsTo   string `form:"starts_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startsFrom, err := parseOptionalTime(query.StartsFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("starts_from", "invalid_starts_from", "invalid starts_from"))
		return
	}

	startsTo, err := parseOptionalTime(query.StartsTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("starts_to", "invalid_starts_to", "invalid starts_to"))
		return
	}

	resp, err := s.eventSvc.List(c.Request.Context(), eventdomain.ListEventRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		Status:     strings.TrimSpace(query.Status),
		ClientID:   strings.TrimSpace(query.ClientID),
		Search:     strings.TrimSpace(query.Search),
		StartsFrom: startsFrom,
		StartsTo:   startsTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEventByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.eventSvc.GetByID(c.Request.Context(), eventdomain.GetEventRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateEvent(c *gin.Context) {
	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.eventSvc.Update(c.Request.Context(), eventdomain.UpdateEventRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Timezone:    req.Timezone,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		MaxCapacity: req.MaxCapacity,
		ClientID:    req.ClientID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PublishEvent(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.eventSvc.Publish(c.Request.Context(), eventdomain.GetEventRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "event.publish", "event", &targetID, map[string]any{
			"slug": resp.Slug,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ArchiveEvent(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	force, err := parseOptionalBool(c.Query("force"))
	if err != nil {
		AbortWithError(c, newValidationError("force", "invalid_force", "invalid force"))
		return
	}

	resp, err := s.eventSvc.Archive(c.Request.Context(), eventdomain.ArchiveEventRequest{
		ID:    id,
		Force: force != nil && *force,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "event.archive", "event", &targetID, nil)
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isEventValidationError(err error) bool {
	switch err {
	case eventdomain.ErrInvalidOrganization,
		eventdomain.ErrInvalidTitle,
		eventdomain.ErrInvalidID,
		eventdomain.ErrInvalidClient,
		eventdomain.ErrInvalidSchedule,
		eventdomain.ErrInvalidCapacity:
		return true
	default:
		return false
	}
}

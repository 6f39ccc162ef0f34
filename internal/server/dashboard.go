package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/eventra/internal/dashboard/domain"
)

func (s *Server) GetDashboardOverview(c *gin.Context) {
	overview, err := s.dashboardSvc.Overview(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": overview})
}

func (s *Server) GetRegistrationSeries(c *gin.Context) {
	req := dashboarddomain.SeriesRequest{
		EventID: strings.TrimSpace(c.Query("event_id")),
	}

	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if from != nil {
		req.From = *from
	}

	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if to != nil {
		req.To = *to
	}

	series, err := s.dashboardSvc.RegistrationSeries(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": series})
}

func (s *Server) GetTopAddOns(c *gin.Context) {
	limit, err := parseOptionalInt64(c.Query("limit"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resolved := 10
	if limit != nil {
		resolved = int(*limit)
	}

	stats, err := s.dashboardSvc.TopAddOns(c.Request.Context(), resolved)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) GetSponsorshipUtilization(c *gin.Context) {
	utilization, err := s.dashboardSvc.SponsorshipUtilization(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": utilization})
}

func isDashboardValidationError(err error) bool {
	switch err {
	case dashboarddomain.ErrInvalidOrganization,
		dashboarddomain.ErrInvalidEvent,
		dashboarddomain.ErrInvalidRange:
		return true
	default:
		return false
	}
}

package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/eventra/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name            string `json:"name"`
	CountryCode     string `json:"country_code"`
	TimezoneName    string `json:"timezone_name"`
	DefaultCurrency string `json:"default_currency"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.Create(c.Request.Context(), userID, organizationdomain.CreateOrganizationRequest{
		Name:            strings.TrimSpace(req.Name),
		CountryCode:     strings.TrimSpace(req.CountryCode),
		TimezoneName:    strings.TrimSpace(req.TimezoneName),
		DefaultCurrency: strings.TrimSpace(req.DefaultCurrency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetOrganization(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	rawOrgID := strings.TrimSpace(c.Param("orgId"))
	parsed, err := snowflake.ParseString(rawOrgID)
	if err != nil {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
		return
	}

	orgIDs, err := s.loadUserOrgIDs(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !containsOrgID(orgIDs, int64(parsed)) {
		AbortWithError(c, ErrForbidden)
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), rawOrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if org == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}

func (s *Server) userIDFromSession(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	raw, ok := value.(string)
	if !ok {
		return 0, false
	}
	userID, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return userID, true
}

func isOrganizationValidationError(err error) bool {
	switch err {
	case organizationdomain.ErrInvalidName,
		organizationdomain.ErrInvalidOrganization,
		organizationdomain.ErrInvalidCountry,
		organizationdomain.ErrInvalidTimezone,
		organizationdomain.ErrInvalidCurrency,
		organizationdomain.ErrInvalidUser,
		organizationdomain.ErrInvalidEmail,
		organizationdomain.ErrInvalidRole:
		return true
	default:
		return false
	}
}

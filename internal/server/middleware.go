package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	auditcontext "github.com/smallbiznis/eventra/internal/auditcontext"
	authdomain "github.com/smallbiznis/eventra/internal/auth/domain"
	"github.com/smallbiznis/eventra/internal/auth/password"
	organizationdomain "github.com/smallbiznis/eventra/internal/organization/domain"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"gorm.io/gorm"
)

const (
	HeaderOrg         = "X-Org-ID"
	contextUserIDKey  = "user_id"
	contextSessionKey = "auth_session"
	contextOrgRoleKey = "org_role"
)

func serveIndex(c *gin.Context) {
	c.File("./public/index.html")
}

// WebAuthRequired authenticates the session cookie and stamps the user onto
// the gin and request contexts. It does not resolve an organization; routes
// that need one add OrgContext after it.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, session.UserID.String())
		c.Set(contextSessionKey, session)

		ctx := auditcontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), session.UserID.String())
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// OrgContext resolves the acting organization for an authenticated request:
// the X-Org-ID header when present, otherwise the session's active org,
// otherwise the user's only membership. The resolved org must be one the
// session's user belongs to.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := s.sessionFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgIDs := []int64(session.OrgIDs)
		if len(orgIDs) == 0 {
			loaded, err := s.loadUserOrgIDs(c.Request.Context(), session.UserID)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			orgIDs = loaded
		}

		var resolved int64
		if raw := strings.TrimSpace(c.GetHeader(HeaderOrg)); raw != "" {
			parsed, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
				return
			}
			resolved = int64(parsed)
		} else if session.ActiveOrgID != nil {
			resolved = *session.ActiveOrgID
		} else if len(orgIDs) == 1 {
			resolved = orgIDs[0]
		}

		if resolved == 0 {
			AbortWithError(c, organizationdomain.ErrInvalidOrganization)
			return
		}
		if !containsOrgID(orgIDs, resolved) {
			AbortWithError(c, ErrForbidden)
			return
		}

		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), resolved))
		c.Next()
	}
}

// RequireRole gates a route on the user's membership role in the resolved
// organization. The lookup result is cached on the gin context so stacked
// checks in the same request hit the database once.
func (s *Server) RequireRole(roles ...organizationdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := s.roleInContextOrg(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

func (s *Server) roleInContextOrg(c *gin.Context) (organizationdomain.Role, error) {
	if cached, ok := c.Get(contextOrgRoleKey); ok {
		if role, ok := cached.(organizationdomain.Role); ok {
			return role, nil
		}
	}

	session, ok := s.sessionFromContext(c)
	if !ok {
		return "", ErrUnauthorized
	}
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok || orgID == 0 {
		return "", organizationdomain.ErrInvalidOrganization
	}

	var member organizationdomain.OrganizationMember
	err := s.db.WithContext(c.Request.Context()).
		Where("org_id = ? AND user_id = ?", orgID, session.UserID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrForbidden
		}
		return "", err
	}

	c.Set(contextOrgRoleKey, member.Role)
	return member.Role, nil
}

func (s *Server) redirectIfLoggedIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			c.Next()
			return
		}
		if _, err := s.authsvc.Authenticate(c.Request.Context(), token); err != nil {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, "/orgs")
		c.Abort()
	}
}

func (s *Server) sessionFromContext(c *gin.Context) (*authdomain.Session, bool) {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := value.(*authdomain.Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

func (s *Server) loadUserOrgIDs(ctx context.Context, userID snowflake.ID) ([]int64, error) {
	var orgIDs []int64
	err := s.db.WithContext(ctx).
		Table("organization_members").
		Select("org_id").
		Where("user_id = ?", userID).
		Order("org_id").
		Scan(&orgIDs).Error
	if err != nil {
		return nil, err
	}
	return orgIDs, nil
}

func containsOrgID(orgIDs []int64, orgID int64) bool {
	for _, id := range orgIDs {
		if id == orgID {
			return true
		}
	}
	return false
}

func verifyPassword(raw, encoded string) bool {
	return password.Verify(raw, encoded)
}

// orgIDFromRequest is the API-key path's org resolution: the key row fixed
// the org at authentication time, so anything else is a caller error.
func (s *Server) orgIDFromRequest(c *gin.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if ok && orgID != 0 {
		return orgID, nil
	}
	return 0, organizationdomain.ErrInvalidOrganization
}

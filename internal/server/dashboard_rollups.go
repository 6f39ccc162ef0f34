package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventra/internal/dashboard/rollup"
	"github.com/smallbiznis/eventra/internal/orgcontext"
)

type rebuildDashboardRollupsRequest struct {
	OrgID string `json:"org_id"`
	Scope string `json:"scope"`
}

// RebuildDashboardRollups recomputes the dashboard rollup tables from the
// registration rows. The rebuild runs synchronously; callers should treat it
// as an operational repair, not a routine refresh.
func (s *Server) RebuildDashboardRollups(c *gin.Context) {
	if s.rollupSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	var req rebuildDashboardRollupsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok || orgID == 0 {
		AbortWithError(c, ErrOrgRequired)
		return
	}

	scope := strings.ToLower(strings.TrimSpace(req.Scope))
	orgScope := &orgID
	if scope == "all" {
		if s.cfg.IsCloud() {
			AbortWithError(c, ErrForbidden)
			return
		}
		orgScope = nil
	}

	orgOverride, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
		return
	}
	if orgOverride != nil {
		if scope == "all" {
			AbortWithError(c, newValidationError("org_id", "unsupported_org_id", "org_id not allowed with scope=all"))
			return
		}
		if *orgOverride != orgID {
			AbortWithError(c, ErrForbidden)
			return
		}
		orgScope = orgOverride
	}

	if err := s.rollupSvc.Rebuild(c.Request.Context(), rollup.RebuildRequest{OrgID: orgScope}); err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "dashboard.rollup_rebuild", "dashboard", nil, map[string]any{
			"scope": scope,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "rebuilt"}})
}

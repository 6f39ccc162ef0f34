package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/eventra/internal/organization/domain"
)

type inviteMembersRequest struct {
	Invites []inviteMemberRequest `json:"invites"`
}

type inviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) ListOrganizationMembers(c *gin.Context) {
	orgID := strings.TrimSpace(c.Param("id"))
	if orgID == "" {
		AbortWithError(c, organizationdomain.ErrInvalidOrganization)
		return
	}

	members, err := s.organizationSvc.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) UpdateOrganizationMemberRole(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID := strings.TrimSpace(c.Param("id"))
	memberID := strings.TrimSpace(c.Param("memberId"))
	if orgID == "" {
		AbortWithError(c, organizationdomain.ErrInvalidOrganization)
		return
	}

	var req updateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	role := organizationdomain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err := s.organizationSvc.UpdateMemberRole(c.Request.Context(), userID, orgID, memberID, role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RemoveOrganizationMember(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID := strings.TrimSpace(c.Param("id"))
	memberID := strings.TrimSpace(c.Param("memberId"))
	if orgID == "" {
		AbortWithError(c, organizationdomain.ErrInvalidOrganization)
		return
	}

	if err := s.organizationSvc.RemoveMember(c.Request.Context(), userID, orgID, memberID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) InviteOrganizationMembers(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID := strings.TrimSpace(c.Param("id"))
	if orgID == "" {
		AbortWithError(c, organizationdomain.ErrInvalidOrganization)
		return
	}

	var req inviteMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if len(req.Invites) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	invites := make([]organizationdomain.InviteRequest, 0, len(req.Invites))
	for _, invite := range req.Invites {
		invites = append(invites, organizationdomain.InviteRequest{
			Email: strings.TrimSpace(invite.Email),
			Role:  organizationdomain.Role(strings.ToUpper(strings.TrimSpace(invite.Role))),
		})
	}

	if err := s.organizationSvc.InviteMembers(c.Request.Context(), userID, orgID, invites); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListOrganizationInvites(c *gin.Context) {
	orgID := strings.TrimSpace(c.Param("id"))
	if orgID == "" {
		AbortWithError(c, organizationdomain.ErrInvalidOrganization)
		return
	}

	invites, err := s.organizationSvc.ListInvites(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invites})
}

// AcceptOrganizationInvite is reachable by any logged-in user; membership in
// the target org is what the invite grants, so no org gate applies here.
func (s *Server) AcceptOrganizationInvite(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	inviteID := strings.TrimSpace(c.Param("inviteId"))
	if inviteID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.organizationSvc.AcceptInvite(c.Request.Context(), userID, inviteID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RevokeOrganizationInvite(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID := strings.TrimSpace(c.Param("id"))
	inviteID := strings.TrimSpace(c.Param("inviteId"))
	if orgID == "" {
		AbortWithError(c, organizationdomain.ErrInvalidOrganization)
		return
	}

	if err := s.organizationSvc.RevokeInvite(c.Request.Context(), userID, orgID, inviteID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pricingdomain "github.com/smallbiznis/eventra/internal/pricing/domain"
)

func (s *Server) UpsertEventPricing(c *gin.Context) {
	var req pricingdomain.UpsertPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventID = strings.TrimSpace(c.Param("id"))

	resp, err := s.pricingSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.EventID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "pricing.upsert", "pricing", &targetID, map[string]any{
			"base_price": resp.BasePrice,
			"currency":   resp.Currency,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEventPricing(c *gin.Context) {
	resp, err := s.pricingSvc.GetByEvent(c.Request.Context(), pricingdomain.GetPricingRequest{
		EventID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddPricingRule(c *gin.Context) {
	var req pricingdomain.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventID = strings.TrimSpace(c.Param("id"))

	resp, err := s.pricingSvc.AddRule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "pricing.rule_create", "pricing", &targetID, map[string]any{
			"event_id": req.EventID,
			"name":     resp.Name,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePricingRule(c *gin.Context) {
	var req pricingdomain.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventID = strings.TrimSpace(c.Param("id"))
	req.RuleID = strings.TrimSpace(c.Param("ruleId"))

	resp, err := s.pricingSvc.UpdateRule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemovePricingRule(c *gin.Context) {
	err := s.pricingSvc.RemoveRule(c.Request.Context(), pricingdomain.RuleRequest{
		EventID: strings.TrimSpace(c.Param("id")),
		RuleID:  strings.TrimSpace(c.Param("ruleId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ReorderPricingRules(c *gin.Context) {
	var req pricingdomain.ReorderRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventID = strings.TrimSpace(c.Param("id"))

	rules, err := s.pricingSvc.ReorderRules(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rules})
}

// PreviewEventPricing is the admin-side calculator: same engine as the public
// preview, but gated by the session instead of the public rate limiter.
func (s *Server) PreviewEventPricing(c *gin.Context) {
	var req pricingdomain.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventID = strings.TrimSpace(c.Param("id"))

	breakdown, err := s.pricingSvc.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": breakdown})
}

func isPricingValidationError(err error) bool {
	switch err {
	case pricingdomain.ErrInvalidOrganization,
		pricingdomain.ErrInvalidEvent,
		pricingdomain.ErrInvalidName,
		pricingdomain.ErrInvalidPrice,
		pricingdomain.ErrInvalidCurrency,
		pricingdomain.ErrInvalidLogic,
		pricingdomain.ErrInvalidID,
		pricingdomain.ErrInvalidReorder:
		return true
	default:
		return false
	}
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
)

func (s *Server) CreateSponsorshipBatch(c *gin.Context) {
	var req sponsorshipdomain.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	batch, records, err := s.sponsorshipSvc.CreateBatch(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := batch.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "sponsorship.batch_create", "sponsorship", &targetID, map[string]any{
			"event_id": batch.EventID.String(),
			"name":     batch.Name,
			"quantity": len(records),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"batch":   batch,
		"records": records,
	}})
}

func (s *Server) ListSponsorshipBatches(c *gin.Context) {
	batches, err := s.sponsorshipSvc.ListBatches(c.Request.Context(), sponsorshipdomain.ListBatchRequest{
		EventID:  strings.TrimSpace(c.Query("event_id")),
		ClientID: strings.TrimSpace(c.Query("client_id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": batches})
}

func (s *Server) GetSponsorshipBatch(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.sponsorshipSvc.GetBatch(c.Request.Context(), sponsorshipdomain.GetBatchRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateSponsorshipBatch(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	changed, err := s.sponsorshipSvc.ActivateBatch(c.Request.Context(), sponsorshipdomain.GetBatchRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := id
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "sponsorship.batch_activate", "sponsorship", &targetID, map[string]any{
			"records_changed": changed,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"records_changed": changed}})
}

func (s *Server) CancelSponsorshipBatch(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	changed, err := s.sponsorshipSvc.CancelBatch(c.Request.Context(), sponsorshipdomain.GetBatchRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := id
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "sponsorship.batch_cancel", "sponsorship", &targetID, map[string]any{
			"records_changed": changed,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"records_changed": changed}})
}

func (s *Server) ListSponsorshipRecords(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
		BatchID   string `form:"batch_id"`
		EventID   string `form:"event_id"`
		Status    string `form:"status"`
		Code      string `form:"code"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.sponsorshipSvc.ListRecords(c.Request.Context(), sponsorshipdomain.ListRecordRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		BatchID:   strings.TrimSpace(query.BatchID),
		EventID:   strings.TrimSpace(query.EventID),
		Status:    strings.TrimSpace(query.Status),
		Code:      strings.TrimSpace(query.Code),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSponsorshipRecord(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.sponsorshipSvc.GetRecord(c.Request.Context(), sponsorshipdomain.GetRecordRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ActivateSponsorshipRecord(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.sponsorshipSvc.ActivateRecord(c.Request.Context(), sponsorshipdomain.GetRecordRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSponsorshipRecord(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.sponsorshipSvc.CancelRecord(c.Request.Context(), sponsorshipdomain.GetRecordRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "sponsorship.record_cancel", "sponsorship", &targetID, map[string]any{
			"code": resp.Code,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isSponsorshipValidationError(err error) bool {
	switch err {
	case sponsorshipdomain.ErrInvalidOrganization,
		sponsorshipdomain.ErrInvalidEvent,
		sponsorshipdomain.ErrInvalidClient,
		sponsorshipdomain.ErrInvalidName,
		sponsorshipdomain.ErrInvalidQuantity,
		sponsorshipdomain.ErrInvalidAmount,
		sponsorshipdomain.ErrInvalidCoverage,
		sponsorshipdomain.ErrInvalidPrefix,
		sponsorshipdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

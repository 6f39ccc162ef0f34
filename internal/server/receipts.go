package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	receiptdomain "github.com/smallbiznis/eventra/internal/receipt/domain"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
)

func (s *Server) GetReceiptByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	receipt, err := s.receiptSvc.Get(c.Request.Context(), receiptdomain.GetRequest{ReceiptID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": receipt})
}

func (s *Server) GetReceiptByRegistration(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("id"))
	registrationID, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	receipt, err := s.receiptSvc.GetByRegistration(c.Request.Context(), registrationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": receipt})
}

func (s *Server) ListEventReceipts(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	receipts, pageInfo, err := s.receiptSvc.ListByEvent(c.Request.Context(), receiptdomain.ListByEventRequest{
		EventID:    strings.TrimSpace(c.Param("id")),
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"receipts":  receipts,
		"page_info": pageInfo,
	}})
}

func (s *Server) RenderReceiptHTML(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	html, err := s.receiptSvc.RenderHTML(c.Request.Context(), receiptdomain.GetRequest{ReceiptID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) RenderReceiptPDF(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reader, err := s.receiptSvc.RenderPDF(c.Request.Context(), receiptdomain.GetRequest{ReceiptID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "inline; filename=receipt-"+id+".pdf")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		return
	}
}

func isReceiptValidationError(err error) bool {
	switch err {
	case receiptdomain.ErrInvalidOrganization,
		receiptdomain.ErrInvalidEvent,
		receiptdomain.ErrInvalidRegistration,
		receiptdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}

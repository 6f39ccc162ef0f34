package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListCapacityAlerts(c *gin.Context) {
	alerts, err := s.alertSvc.ListActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alerts})
}

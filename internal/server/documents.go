package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetDocument(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		AbortWithError(c, ErrNotFound)
		return
	}

	doc, content, err := s.ingestSvc.GetDocument(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Kind+"-"+doc.Reference))
	c.Header("X-Checksum-Sha256", doc.Checksum)
	c.Data(http.StatusOK, doc.MimeType, content)
}

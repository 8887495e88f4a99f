package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListBranches(c *gin.Context) {
	branches, err := s.refrepo.ListBranches(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": branches})
}

func (s *Server) ListStores(c *gin.Context) {
	stores, err := s.refrepo.ListStores(c.Request.Context(), strings.TrimSpace(c.Param("code")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stores})
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	obslogger "github.com/smallbiznis/posreport/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) ListTerminalKeys(c *gin.Context) {
	keys, err := s.terminalKeys.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": keys})
}

// CreateTerminalKey returns the raw key once. Only its hash is stored.
func (s *Server) CreateTerminalKey(c *gin.Context) {
	var req apikeydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError("The request body must be a valid JSON object."))
		return
	}

	secret, err := s.terminalKeys.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.logKeyChange(c, "terminal key created", secret.KeyID)
	c.JSON(http.StatusCreated, gin.H{"data": secret})
}

func (s *Server) RotateTerminalKey(c *gin.Context) {
	secret, err := s.terminalKeys.Rotate(c.Request.Context(), c.Param("key_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.logKeyChange(c, "terminal key rotated", secret.KeyID)
	c.JSON(http.StatusOK, gin.H{"data": secret})
}

func (s *Server) RevokeTerminalKey(c *gin.Context) {
	keyID := c.Param("key_id")
	if err := s.terminalKeys.Revoke(c.Request.Context(), keyID); err != nil {
		AbortWithError(c, err)
		return
	}
	s.logKeyChange(c, "terminal key revoked", keyID)
	c.Status(http.StatusNoContent)
}

func (s *Server) logKeyChange(c *gin.Context, msg, keyID string) {
	fields := []zap.Field{zap.String("key_id", keyID)}
	if principal, ok := principalFromContext(c); ok {
		fields = append(fields, zap.String("user_id", principal.User.ID.String()))
	}
	obslogger.WithContext(c.Request.Context(), s.log).Info(msg, fields...)
}

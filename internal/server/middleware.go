package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	obscontext "github.com/smallbiznis/posreport/internal/observability/context"
	obslogger "github.com/smallbiznis/posreport/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "auth_principal"

	sessionInvalidatedMessage = "Your session has ended because your account signed in elsewhere. Please log in again."
	unauthenticatedMessage    = "Please log in to continue."
)

// SessionGate validates the session cookie on every request that carries one. A valid
// session refreshes its activity and exposes the principal to later handlers. Anything
// else, including a session store failure, logs the caller out locally and rejects the
// request. Requests without a cookie pass through unauthenticated.
func (s *Server) SessionGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := s.sessions.ReadCredential(c)
		if !ok {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		principal, err := s.authsvc.Authenticate(ctx, credential)
		if err != nil {
			s.sessions.Clear(c)
			if errors.Is(err, authdomain.ErrSessionStoreUnavailable) {
				obslogger.WithContext(ctx, s.log).Error("session gate denied request on store failure", zap.Error(err))
			}
			s.rejectSession(c, "session_invalidated", sessionInvalidatedMessage)
			return
		}

		c.Set(contextPrincipalKey, principal)
		c.Request = c.Request.WithContext(obscontext.WithUserID(ctx, principal.User.ID.String()))
		c.Next()
	}
}

// AuthRequired rejects requests the gate left unauthenticated.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := principalFromContext(c); !ok {
			s.rejectSession(c, "unauthorized", unauthenticatedMessage)
			return
		}
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal.User.Role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// rejectSession answers API callers with a 401 and sends browsers back to the login
// page with the reason.
func (s *Server) rejectSession(c *gin.Context, errType, message string) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: errorPayload{
			Type:    errType,
			Message: message,
		}})
		return
	}
	c.Redirect(http.StatusFound, s.loginURL(message))
	c.Abort()
}

func (s *Server) loginURL(message string) string {
	path := s.cfg.AuthLoginPath
	if path == "" {
		path = "/login"
	}
	if message == "" {
		return path
	}
	return path + "?message=" + url.QueryEscape(message)
}

func principalFromContext(c *gin.Context) (*authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*authdomain.Principal)
	return principal, ok && principal != nil && principal.User != nil
}

// wantsJSON reports whether the caller is a script rather than a browser navigation.
func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if strings.EqualFold(c.GetHeader("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return true
	}
	accept := strings.ToLower(c.GetHeader("Accept"))
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

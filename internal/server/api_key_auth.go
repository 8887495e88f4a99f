package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/posreport/internal/apikey/domain"
	obscontext "github.com/smallbiznis/posreport/internal/observability/context"
)

const contextTerminalKey = "terminal_principal"

// APIKeyRequired authenticates POS terminals by bearer key. The terminal's branch,
// store and terminal come from the terminal_keys row, never from the request.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.terminalKeys.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, apikeydomain.ErrInvalidKey) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
			return
		}

		c.Set(contextTerminalKey, principal)
		c.Request = c.Request.WithContext(obscontext.WithTerminal(c.Request.Context(),
			principal.Branch+"/"+principal.Store+"/"+principal.Terminal))
		c.Next()
	}
}

func terminalFromContext(c *gin.Context) (*apikeydomain.Principal, bool) {
	value, ok := c.Get(contextTerminalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*apikeydomain.Principal)
	return principal, ok && principal != nil
}

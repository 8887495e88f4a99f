package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/posreport/internal/auth/domain"
	obslogger "github.com/smallbiznis/posreport/internal/observability/logger"
	"github.com/smallbiznis/posreport/pkg/validation"
	"go.uber.org/zap"
)

const invalidCredentialsMessage = "These credentials do not match our records."

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type loginResponse struct {
	User     *authdomain.UserView `json:"user"`
	Redirect string               `json:"redirect"`
}

// Login serves both the JSON client and the classic login form. Form posts always end
// in a redirect.
func (s *Server) Login(c *gin.Context) {
	jsonCaller := wantsJSON(c)

	var req LoginRequest
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.loginFailed(c, jsonCaller, invalidRequestError("malformed login request"))
			return
		}
	} else {
		req.Email = c.PostForm("email")
		req.Password = c.PostForm("password")
		req.Remember = checkboxChecked(c.PostForm("remember"))
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		Remember:  req.Remember,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		s.loginFailed(c, jsonCaller, err)
		return
	}

	s.sessions.Set(c, result.Credential, result.ExpiresAt)

	redirect := s.dashboardPath()
	if !jsonCaller {
		c.Redirect(http.StatusFound, redirect)
		return
	}
	c.JSON(http.StatusOK, loginResponse{User: result.User.View(), Redirect: redirect})
}

func (s *Server) loginFailed(c *gin.Context, jsonCaller bool, err error) {
	if errors.Is(err, authdomain.ErrInvalidCredentials) {
		verrs := validation.Errors{}
		verrs.Add("email", invalidCredentialsMessage)
		err = verrs
	}

	if jsonCaller {
		AbortWithError(c, err)
		return
	}

	message := "Login failed, please try again."
	if verrs, ok := validation.As(err); ok {
		for _, field := range []string{"email", "password", "request"} {
			if msgs := verrs[field]; len(msgs) > 0 {
				message = msgs[0]
				break
			}
		}
	} else {
		_, payload := mapError(err)
		message = payload.Message
	}
	c.Redirect(http.StatusFound, s.loginURL(message))
	c.Abort()
}

// Logout always drops the cookie. The stored session is only cleared when it is still
// the one this cookie names, so a stale client cannot log out a newer login.
func (s *Server) Logout(c *gin.Context) {
	credential, ok := s.sessions.ReadCredential(c)
	s.sessions.Clear(c)

	if ok {
		err := s.authsvc.Logout(c.Request.Context(), credential)
		if err != nil && !errors.Is(err, authdomain.ErrInvalidSession) {
			obslogger.WithContext(c.Request.Context(), s.log).Error("logout failed", zap.Error(err))
			AbortWithError(c, err)
			return
		}
	}

	if wantsJSON(c) {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusFound, s.loginURL(""))
}

// SessionStatus answers the client's periodic "am I still logged in" poll. It applies the
// gate's rules without refreshing activity and never responds 401.
func (s *Server) SessionStatus(c *gin.Context) {
	credential, ok := s.sessions.ReadCredential(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	authenticated, err := s.authsvc.Check(c.Request.Context(), credential)
	if err != nil {
		obslogger.WithContext(c.Request.Context(), s.log).Error("session check failed", zap.Error(err))
	}
	if !authenticated {
		s.sessions.Clear(c)
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": authenticated})
}

func (s *Server) Me(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": principal.User.View()})
}

func checkboxChecked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

func (s *Server) dashboardPath() string {
	if s.cfg.AuthDashboardPath == "" {
		return "/dashboard"
	}
	return s.cfg.AuthDashboardPath
}

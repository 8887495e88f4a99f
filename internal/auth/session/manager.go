package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
)

const DefaultCookieName = "_posr_sid"

// Manager reads and writes the front-door session cookie.
type Manager struct {
	cookieName string
	secure     bool
	clock      clock.Clock
}

func NewManager(cfg config.Config, clk clock.Clock) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
		clock:      clk,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) ReadCredential(c *gin.Context) (string, bool) {
	value, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// Set writes the cookie. A nil expiresAt yields a browser-session cookie.
func (m *Manager) Set(c *gin.Context, value string, expiresAt *time.Time) {
	maxAge := 0
	if expiresAt != nil {
		maxAge = max(int(expiresAt.Sub(m.clock.Now()).Seconds()), 1)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}

package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSetAndClear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	m := NewManager(config.Config{AuthCookieSecure: true}, clk)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", nil)

	expires := clk.Now().Add(time.Hour)
	m.Set(c, "1.token", &expires)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, "1.token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	m.Clear(c)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestManagerReadCredential(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(config.Config{}, clock.NewFakeClock(time.Now()))

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := m.ReadCredential(c)
	assert.False(t, ok)

	c.Request.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "42.abc"})
	value, ok := m.ReadCredential(c)
	assert.True(t, ok)
	assert.Equal(t, "42.abc", value)
}

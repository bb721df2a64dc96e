package middleware

import (
	"net/http"

	"cropguard-web/services"

	"github.com/gin-gonic/gin"
)

// SessionCookie holds the browser session id
const SessionCookie = "cropguard_session"

const sessionKey = "session"

// Session attaches the caller's session to the context, issuing a new
// cookie when the browser has none or its session expired
func Session(store *services.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookie)
		s := store.Get(id)
		if s.ID != id {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, s.ID, 0, "/", "", c.Request.TLS != nil, true)
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// SessionFrom returns the session attached by Session
func SessionFrom(c *gin.Context) *services.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*services.Session); ok {
			return s
		}
	}
	return nil
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookie carries the shopper session id for browsers.
	SessionCookie = "session_id"
	// SessionHeader lets API clients pass the session id explicitly.
	SessionHeader = "X-Session-ID"
	// ContextSessionID is the gin context key holding the resolved session id.
	ContextSessionID = "session_id"

	sessionMaxAge = 30 * 24 * 60 * 60
)

// Session resolves the shopper session from the header or cookie, minting a
// new one when neither carries a usable id.
func Session(secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if !ValidSessionID(id) {
			id, _ = c.Cookie(SessionCookie)
		}
		if !ValidSessionID(id) {
			id = uuid.NewString()
			c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", secureCookie, true)
		}

		c.Set(ContextSessionID, id)
		c.Header(SessionHeader, id)
		c.Next()
	}
}

// GetSessionID returns the session resolved by Session.
func GetSessionID(c *gin.Context) string {
	return c.GetString(ContextSessionID)
}

// ValidSessionID accepts up to 64 letters, digits, '-' and '_'. Session ids
// become part of storage keys, so separators are refused.
func ValidSessionID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

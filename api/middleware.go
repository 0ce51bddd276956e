package api

import (
	"github.com/gin-gonic/gin"

	"researchhub/hub"
	"researchhub/session"
	"researchhub/utils"
)

// SessionTokenHeader carries a freshly issued anonymous token back to the client.
const SessionTokenHeader = "X-Session-Token"

const ctxSession = "session"

// SessionMiddleware resolves the session named by the token claims. It must run after
// utils.AuthMiddleware or utils.OptionalAuth.
//
// Requests without a usable anonymous session get a new one, returned in SessionTokenHeader.
// A signed-in token whose session is gone (logout, restart) is rejected.
func SessionMiddleware(h *hub.Hub) gin.HandlerFunc {
	return sessionMiddleware(h, true)
}

// LenientSessionMiddleware is SessionMiddleware for the sign-in route: an ended
// signed-in session is replaced with a fresh anonymous one instead of rejected.
func LenientSessionMiddleware(h *hub.Hub) gin.HandlerFunc {
	return sessionMiddleware(h, false)
}

func sessionMiddleware(h *hub.Hub, rejectEnded bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetString(utils.CtxSessionID)
		email := c.GetString(utils.CtxEmail)

		if sid != "" {
			if sess, ok := h.Sessions.Get(sid); ok {
				u, signedIn := sess.User()
				if email == "" || (signedIn && u.Email == email) {
					c.Set(ctxSession, sess)
					c.Set(utils.CtxAdmin, sess.IsAdmin())
					c.Next()
					return
				}
			}
		}
		if email != "" && rejectEnded {
			utils.GinUnauthorized(c, "Session has ended, sign in again")
			return
		}

		sess := h.Sessions.Create()
		token, err := utils.GenerateJWT(sess.ID, "", false, h.Config)
		if err != nil {
			h.Sessions.Remove(sess.ID)
			utils.GinInternalServerError(c, "Failed to start session")
			return
		}
		c.Header(SessionTokenHeader, token)
		c.Set(utils.CtxSessionID, sess.ID)
		c.Set(utils.CtxEmail, "")
		c.Set(utils.CtxAdmin, false)
		c.Set(ctxSession, sess)
		c.Next()
	}
}

// currentSession returns the session set by SessionMiddleware.
func currentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok
}

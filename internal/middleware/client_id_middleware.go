// internal/middleware/client_id_middleware.go
package middleware

import (
	"net/http"
	"time"

	"workwise-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const (
	ClientIDCookie    = "ww_client_id"
	clientIDCookieAge = 30 * 24 * time.Hour
)

// ClientID binds every request to a browser client id kept in a cookie. The
// id scopes the client's persisted auth artifacts, so it is only ever taken
// from the HttpOnly cookie or freshly minted.
func ClientID(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if v, err := c.Cookie(ClientIDCookie); err == nil && isValidClientID(v) {
			id = v
		}
		if id == "" {
			id = ulid.Make().String()
		}

		http.SetCookie(c.Writer, &http.Cookie{
			Name:     ClientIDCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(clientIDCookieAge.Seconds()),
			Expires:  time.Now().Add(clientIDCookieAge),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   secure,
		})

		c.Set(ctxClientID, id)
		c.Next()
	}
}

// ClientIDQueryMatchesCookie rejects requests whose client_id query
// parameter names a different client than the cookie. Must run after
// ClientID.
func ClientIDQueryMatchesCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		if q, ok := c.GetQuery("client_id"); ok && q != GetClientID(c) {
			response.Forbidden(c, "client_id does not match this browser")
			c.Abort()
			return
		}
		c.Next()
	}
}

func isValidClientID(id string) bool {
	if id == "" {
		return false
	}
	_, err := ulid.ParseStrict(id)
	return err == nil
}

package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"food-admin/internal/service"
)

const accountIDKey = "account_id"

// AuthGateway exige una sesion valida (cookie o header Bearer) y guarda el id
// de la cuenta en el contexto. Toda falla responde el mismo 401.
func AuthGateway(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if jwtSvc == nil || token == "" {
			abortUnauthorized(c)
			return
		}
		accountID, err := jwtSvc.Verify(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// GetAccountID obtiene el id autenticado desde el contexto.
func GetAccountID(c *gin.Context) (string, bool) {
	id := c.GetString(accountIDKey)
	return id, id != ""
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(sessionCookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
}

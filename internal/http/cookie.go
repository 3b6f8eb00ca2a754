package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const sessionCookieName = "token"

// CookieConfig define como se emite la cookie de sesion.
type CookieConfig struct {
	Secure    bool
	CrossSite bool
	TTL       time.Duration
}

func (cfg CookieConfig) sameSite() http.SameSite {
	if cfg.CrossSite {
		return http.SameSiteNoneMode
	}
	return http.SameSiteStrictMode
}

// SameSite=None solo es aceptado por los navegadores junto con Secure.
func (cfg CookieConfig) secure() bool {
	return cfg.Secure || cfg.CrossSite
}

func setSessionCookie(c *gin.Context, cfg CookieConfig, token string) {
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(sessionCookieName, token, int(cfg.TTL.Seconds()), "/", "", cfg.secure(), true)
}

func clearSessionCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(sessionCookieName, "", -1, "/", "", cfg.secure(), true)
}

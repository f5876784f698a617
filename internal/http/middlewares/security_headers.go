package middlewares

import "github.com/gin-gonic/gin"

const defaultCSP = "default-src 'none'"

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("X-XSS-Protection", "0")
		// pure JSON API, nothing should ever render
		c.Header("Content-Security-Policy", defaultCSP)
		c.Next()
	}
}

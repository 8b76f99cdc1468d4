package middleware

import (
	"net"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/neighborly/apperr"
)

// IPWhitelist only admits clients whose IP matches one of entries. An entry is
// a plain address or a CIDR block. An empty list admits everyone.
func IPWhitelist(entries []string) gin.HandlerFunc {
	exact := make(map[string]bool, len(entries))
	var nets []*net.IPNet
	for _, e := range entries {
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
			continue
		}
		exact[e] = true
	}
	open := len(exact) == 0 && len(nets) == 0

	return func(c *gin.Context) {
		if open {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if exact[ip] {
			c.Next()
			return
		}
		if parsed := net.ParseIP(ip); parsed != nil {
			for _, n := range nets {
				if n.Contains(parsed) {
					c.Next()
					return
				}
			}
		}
		apperr.Respond(c, apperr.Forbidden("access denied"))
	}
}

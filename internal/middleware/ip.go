package middleware

import (
	"fmt"
	"net"

	"github.com/labstack/echo/v4"
)

// NewIPExtractor returns the connection's remote address when no proxies are
// trusted. Otherwise X-Forwarded-For is honoured, but only for hops inside the
// given CIDR ranges.
func NewIPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	options := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		options = append(options, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(options...), nil
}

// clientIP uses the server's extractor and falls back to the remote address,
// never to unverified forwarding headers.
func clientIP(c echo.Context) string {
	if extract := c.Echo().IPExtractor; extract != nil {
		return extract(c.Request())
	}
	return echo.ExtractIPDirect()(c.Request())
}

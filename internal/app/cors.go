package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/mx-space/wiki/internal/config"
)

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		AllowOriginFunc:  func(string) bool { return true },
	}
	if cfg.IsProduction() && len(cfg.AllowedOrigins) > 0 {
		c.AllowOriginFunc = newOriginMatcher(cfg.AllowedOrigins).allows
	}
	return c
}

// originMatcher checks request origins against allowed_origins entries.
// An entry is a host ("wiki.example.com"), a full origin
// ("https://wiki.example.com"), a subdomain wildcard ("*.example.com") or
// a port wildcard ("localhost:*").
type originMatcher struct {
	exact     map[string]bool
	suffixes  []string
	hostnames []string
}

func newOriginMatcher(origins []string) *originMatcher {
	m := &originMatcher{exact: make(map[string]bool)}
	for _, o := range origins {
		p := strings.ToLower(originHost(strings.TrimSpace(o)))
		switch {
		case p == "":
		case strings.HasPrefix(p, "*."):
			m.suffixes = append(m.suffixes, p[1:])
		case strings.HasSuffix(p, ":*"):
			m.hostnames = append(m.hostnames, strings.TrimSuffix(p, ":*"))
		default:
			m.exact[p] = true
		}
	}
	return m
}

func (m *originMatcher) allows(origin string) bool {
	host := strings.ToLower(originHost(origin))
	if m.exact[host] {
		return true
	}
	for _, s := range m.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	name := host
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		name = host[:i]
	}
	for _, h := range m.hostnames {
		if name == h {
			return true
		}
	}
	return false
}

// originHost returns the host[:port] of an origin, or the input when it
// carries no scheme.
func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

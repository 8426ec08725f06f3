package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/Fantasim/hdwallet/internal/api/httputil"
	"github.com/Fantasim/hdwallet/internal/config"
)

// IPAllowlist enforces IP-based access control.
// Loopback and private-network addresses are always allowed. Any other
// client must match one of the configured addresses or CIDR blocks.
type IPAllowlist struct {
	ips  map[string]bool
	nets []*net.IPNet
}

// NewIPAllowlist parses entries, each a bare IP or a CIDR block.
func NewIPAllowlist(entries []string) (*IPAllowlist, error) {
	al := &IPAllowlist{ips: make(map[string]bool)}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if strings.Contains(e, "/") {
			_, cidr, err := net.ParseCIDR(e)
			if err != nil {
				return nil, fmt.Errorf("%w: allowed network %q: %w", config.ErrInvalidConfig, e, err)
			}
			al.nets = append(al.nets, cidr)
			continue
		}
		ip := net.ParseIP(e)
		if ip == nil {
			return nil, fmt.Errorf("%w: allowed IP %q is not an address", config.ErrInvalidConfig, e)
		}
		al.ips[ip.String()] = true
	}
	slog.Info("IP allowlist initialized", "ips", len(al.ips), "networks", len(al.nets))
	return al, nil
}

// Middleware returns an HTTP middleware that checks the client IP against the allowlist.
// Expects Chi's RealIP middleware to have already resolved X-Forwarded-For into RemoteAddr.
func (al *IPAllowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractIP(r.RemoteAddr)

		if al.IsAllowed(clientIP) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("IP not allowed",
			"ip", clientIP,
			"method", r.Method,
			"path", r.URL.Path,
		)
		httputil.Error(w, http.StatusForbidden, config.ErrorIPNotAllowed,
			"IP address "+clientIP+" is not in the allowlist")
	})
}

// IsAllowed checks whether the given IP should be granted access.
func (al *IPAllowlist) IsAllowed(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() {
		return true
	}
	if al.ips[ip.String()] {
		return true
	}
	for _, n := range al.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// extractIP extracts the IP address from a host:port string.
// If there's no port, returns the string as-is.
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

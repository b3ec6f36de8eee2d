package middle

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/mstgnz/gobaokim/infra/logger"
)

type clientIPKey struct{}

// ProxyTrust decides whether a peer may speak for the client through
// X-Forwarded-For or X-Real-IP.
type ProxyTrust struct {
	nets []*net.IPNet
}

// NewProxyTrust parses IPs and CIDRs. Invalid entries are logged and skipped.
func NewProxyTrust(entries []string) *ProxyTrust {
	pt := &ProxyTrust{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				logger.Warn("Ignoring invalid trusted proxy: " + entry)
				continue
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			pt.nets = append(pt.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn("Ignoring invalid trusted proxy: " + entry)
			continue
		}
		pt.nets = append(pt.nets, ipNet)
	}
	return pt
}

// Trusted reports whether ip belongs to a trusted proxy.
func (pt *ProxyTrust) Trusted(ip string) bool {
	if pt == nil {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range pt.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Resolve returns the client address of r. Forwarding headers count only
// when the direct peer is trusted; X-Forwarded-For is walked from the right
// and the first hop that is not a trusted proxy wins.
func (pt *ProxyTrust) Resolve(r *http.Request) string {
	peer := peerHost(r.RemoteAddr)
	if !pt.Trusted(peer) {
		return normalizeIP(peer)
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			client = hop
			if !pt.Trusted(hop) {
				break
			}
		}
		if client != "" {
			return normalizeIP(client)
		}
		return normalizeIP(peer)
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return normalizeIP(xri)
	}
	return normalizeIP(peer)
}

// ClientIPMiddleware resolves the client address once per request for
// logging, rate limiting and the webhook allowlist.
func ClientIPMiddleware(trustedProxies []string) func(http.Handler) http.Handler {
	pt := NewProxyTrust(trustedProxies)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, pt.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP returns the address resolved by ClientIPMiddleware. Without
// it only the connection peer is used; headers are never trusted.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return normalizeIP(peerHost(r.RemoteAddr))
}

func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}

func normalizeIP(ip string) string {
	if ip == "::1" {
		return "127.0.0.1"
	}
	return ip
}

// Package metadata resolves the client network origin and User-Agent of a
// request and stores them in the request context. The origin is what the
// lockout ledger keys origin-axis records on, so it is always a canonical
// address string: IPv4-mapped IPv6 is unmapped, zones are dropped and IPv6
// is lowercased and compressed.
package metadata

import (
	"net/http"
	"net/netip"
	"strings"

	"lockgate/pkg/requestcontext"
)

// UnknownOrigin is recorded when RemoteAddr cannot be parsed. All such
// requests share one origin-axis ledger record.
const UnknownOrigin = "unknown"

// maxForwardedLength bounds the X-Forwarded-For header we are willing to walk.
const maxForwardedLength = 512

// Origin returns middleware that stores the resolved origin and User-Agent.
// Forwarding headers are only honoured when the direct peer is inside one of
// the trusted prefixes; with none configured the peer address is always used.
func Origin(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithClientMetadata(r.Context(), ResolveOrigin(r, trusted), r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResolveOrigin picks the client address for r.
//
// X-Forwarded-For is walked from the right, skipping hops that are trusted
// proxies; the first untrusted hop is the client. Entries to its left were
// supplied by the client and are ignored, so prepending addresses cannot move
// a caller onto someone else's ledger record. X-Real-IP is consulted only when
// X-Forwarded-For is absent.
func ResolveOrigin(r *http.Request, trusted []netip.Prefix) string {
	peer, ok := peerAddr(r.RemoteAddr)
	if !ok {
		return UnknownOrigin
	}
	if !contains(trusted, peer) {
		return peer.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		joined := strings.Join(xff, ",")
		if len(joined) > maxForwardedLength {
			return peer.String()
		}
		hops := strings.Split(joined, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, ok := parseAddr(hops[i])
			if !ok {
				return peer.String()
			}
			if !contains(trusted, hop) {
				return hop.String()
			}
		}
		return peer.String()
	}

	if ri, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return ri.String()
	}
	return peer.String()
}

func peerAddr(remoteAddr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return canonical(ap.Addr()), true
	}
	return parseAddr(remoteAddr)
}

func parseAddr(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, false
	}
	return canonical(addr), true
}

func canonical(addr netip.Addr) netip.Addr {
	return addr.Unmap().WithZone("")
}

func contains(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

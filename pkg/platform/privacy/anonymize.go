// Package privacy reduces client addresses to network prefixes before they
// reach access logs, so logs never pin a request to a single host.
package privacy

import "net/netip"

const (
	ipv4Bits = 24
	ipv6Bits = 48
)

// AnonymizeIP masks an origin to its /24 (IPv4) or /48 (IPv6) network, e.g.
// "198.51.100.47" becomes "198.51.100.0" and "2001:db8:85a3::7334" becomes
// "2001:db8:85a3::". IPv4-mapped IPv6 is treated as IPv4. It returns
// "unknown" for an empty or "unknown" origin and "invalid" for anything that
// does not parse.
func AnonymizeIP(origin string) string {
	if origin == "" || origin == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(origin)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := ipv6Bits
	if addr.Is4() {
		bits = ipv4Bits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// Package portal decides when a request arriving over the provisioning
// access point has to be sent to the device's own pages.
package portal

import (
	"net"
	"strings"
)

// ProbePaths are the connectivity checks phones and laptops issue after
// joining a network. They are routed through the resolver while the captive
// portal is enabled.
var ProbePaths = []string{"/generate_204", "/fwlink", "/favicon.ico"}

// NeedsRedirect reports whether a request with the given Host header must
// be redirected to the device. Hosts made of digits and dots only and the
// device's own mDNS name are left alone.
func NeedsRedirect(host, hostname string) bool {
	if isIP(host) {
		return false
	}
	return host != hostname+".local"
}

// Location is the redirect target for addr
func Location(addr net.IP) string {
	return "http://" + addr.String()
}

// isIP only checks the character set, so an empty host counts as an address
func isIP(s string) bool {
	return strings.Trim(s, "0123456789.") == ""
}

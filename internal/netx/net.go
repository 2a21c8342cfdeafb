// Package netx holds small net/http helpers.
package netx

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of r.RemoteAddr. Proxy headers are not
// consulted here; put chi's RealIP middleware in front when the server runs
// behind a trusted proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package proxy

import (
	"net"
	"net/http"
	"regexp"
	"strings"
)

var ipChars = regexp.MustCompile(`^[0-9a-fA-F:.]+$`)

// SanitizeIP trims v, drops inner whitespace and returns it when only
// address characters remain, otherwise "".
func SanitizeIP(v string) string {
	v = strings.Join(strings.Fields(v), "")
	if v == "" || !ipChars.MatchString(v) {
		return ""
	}
	return v
}

// ClientIP picks the client address from, in order: the hosting platform's
// connection header, the first X-Forwarded-For entry, X-Real-IP, the CDN
// header, and finally the TCP peer address.
func ClientIP(r *http.Request) string {
	if ip := SanitizeIP(r.Header.Get("X-Nf-Client-Connection-Ip")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := SanitizeIP(first); ip != "" {
			return ip
		}
	}
	if ip := SanitizeIP(r.Header.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if ip := SanitizeIP(r.Header.Get("Cf-Connecting-Ip")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return SanitizeIP(host)
}

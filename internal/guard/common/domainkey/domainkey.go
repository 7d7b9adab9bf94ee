// Package domainkey canonicalizes hostnames and URLs into domain keys, the
// comparable form used for every equality and suffix test in siteguard.
package domainkey

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

const maxNameLength = 253

// Normalize returns the domain key for a hostname or URL:
//   - lowercased and trimmed of surrounding whitespace
//   - hostname extracted when the input is URL-shaped
//   - path, query, fragment, userinfo and port removed
//   - one leading "www." and any trailing dots removed
//   - internationalized names converted to their ASCII form
//
// Malformed input yields "", which matches nothing.
func Normalize(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return ""
	}

	host := s
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	} else {
		host = bareHost(s)
	}

	host = strings.TrimPrefix(host, "www.")
	for strings.HasSuffix(host, ".") {
		host = strings.TrimSuffix(host, ".")
	}
	if host == "" {
		return ""
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}

	ascii, err := idna.ToASCII(host)
	if err != nil {
		return ""
	}
	if !validName(ascii) {
		return ""
	}
	return ascii
}

// bareHost strips path, query, fragment, userinfo and port from a
// scheme-less input such as "example.com:8080/a?b".
func bareHost(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	if strings.HasPrefix(s, "[") {
		if end := strings.IndexByte(s, ']'); end > 0 {
			return s[1:end]
		}
		return ""
	}
	// a single colon is a port separator; more than one is a bare IPv6 literal
	if strings.Count(s, ":") == 1 {
		s = s[:strings.IndexByte(s, ':')]
	}
	return s
}

// validName reports whether s is a plausible ASCII hostname: bounded length,
// no empty labels, and only letters, digits, hyphens and underscores.
func validName(s string) bool {
	if len(s) > maxNameLength {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

// MatchesDomain reports whether candidate equals base or is a subdomain of it.
// Both arguments are expected to be domain keys; empty keys never match.
func MatchesDomain(candidate, base string) bool {
	if candidate == "" || base == "" {
		return false
	}
	return candidate == base || strings.HasSuffix(candidate, "."+base)
}

// ParentDomains returns the successive parents of name, most specific first,
// stopping before the public suffix: "a.mail.example.co.uk" yields
// "mail.example.co.uk" and "example.co.uk".
func ParentDomains(name string) []string {
	if name == "" {
		return nil
	}
	suffix, _ := publicsuffix.PublicSuffix(name)

	var parents []string
	cur := name
	for {
		i := strings.IndexByte(cur, '.')
		if i < 0 {
			break
		}
		cur = cur[i+1:]
		if cur == "" || cur == suffix {
			break
		}
		parents = append(parents, cur)
	}
	return parents
}

// ApexDomain returns the registrable domain (eTLD+1) for name, or name itself
// when it has none.
func ApexDomain(name string) string {
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}

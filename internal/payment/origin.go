package payment

import (
	"errors"  // Error values
	"net/url" // Origin parsing
	"strings" // String manipulation
)

var ErrInvalidOrigin = errors.New("payment: invalid origin")

// NormalizeOrigin reduces a requesting page's origin to the bare lowercase
// host used as the allowance partition key. Scheme, userinfo, port and path
// are stripped: "https://User@Example.COM:8080/checkout" -> "example.com".
func NormalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", ErrInvalidOrigin
	}
	host := origin
	if strings.Contains(origin, "://") {
		u, err := url.Parse(origin)
		if err != nil {
			return "", ErrInvalidOrigin
		}
		host = u.Hostname()
	} else {
		// Bare authority form: strip userinfo, path and port by hand
		host = strings.TrimPrefix(host, "//")
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
		if i := strings.LastIndex(host, "@"); i >= 0 {
			host = host[i+1:]
		}
		if strings.HasPrefix(host, "[") {
			// Bracketed IPv6 literal, with or without a port suffix
			if i := strings.Index(host, "]"); i >= 0 {
				host = host[1:i]
			}
		} else if i := strings.LastIndex(host, ":"); i >= 0 {
			if _, err := urlPort(host[i+1:]); err == nil {
				host = host[:i]
			}
		}
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", ErrInvalidOrigin
	}
	return host, nil
}

// urlPort validates a candidate port suffix
func urlPort(p string) (int, error) {
	if p == "" {
		return 0, ErrInvalidOrigin
	}
	n := 0
	for _, r := range p {
		if r < '0' || r > '9' {
			return 0, ErrInvalidOrigin
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

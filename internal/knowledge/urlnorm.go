package knowledge

import (
	"net/url"
	"strings"

	"github.com/octobrain/octobrain/internal/ferrors"
)

// defaultPorts maps a scheme to the port implied by it, so that an
// explicit default port normalizes away (https://host:443/ ==
// https://host/).
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// NormalizeURL lowercases the scheme and host, strips the fragment, and
// removes an explicit port that matches the scheme's default, per
// spec.md §3's KnowledgeSource primary key rule.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ferrors.InvalidInputf("invalid URL %q: %v", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", ferrors.InvalidInputf("URL %q must be absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if port := u.Port(); port != "" && defaultPorts[u.Scheme] == port {
		u.Host = strings.TrimSuffix(u.Host, ":"+port)
	}

	return u.String(), nil
}

package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hyperifyio/xmirror/internal/post"
)

// CanonicalHost is the origin site every locator is rewritten to.
const CanonicalHost = "x.com"

// DefaultHosts are recognized in addition to the canonical host and the
// configured mirrors.
var DefaultHosts = []string{
	"x.com",
	"twitter.com",
	"fxtwitter.com",
	"fixupx.com",
	"vxtwitter.com",
	"twitfix.com",
	"nitter.net",
}

// statusRE matches <scheme>://<host>/<handle>/status/<digits>. The host is
// checked against the allow list afterwards so unrelated links are skipped.
var statusRE = regexp.MustCompile(`(?i:https?)://([A-Za-z0-9.-]+(?::\d+)?)/([A-Za-z0-9_]{1,50})/(?i:status(?:es)?)/(\d+)`)

// Normalizer recognizes status URLs on a fixed set of hosts.
type Normalizer struct {
	canonical string
	hosts     map[string]struct{}
}

// New builds a Normalizer accepting the canonical host, DefaultHosts and the
// hosts of every mirror base URL. extra may contain bare hosts or URLs.
func New(canonical string, mirrors []string, extra ...string) *Normalizer {
	if strings.TrimSpace(canonical) == "" {
		canonical = CanonicalHost
	}
	n := &Normalizer{canonical: strings.ToLower(canonical), hosts: map[string]struct{}{}}
	n.add(canonical)
	for _, h := range DefaultHosts {
		n.add(h)
	}
	for _, m := range mirrors {
		n.add(m)
	}
	for _, h := range extra {
		n.add(h)
	}
	return n
}

func (n *Normalizer) add(hostOrURL string) {
	h := hostOf(hostOrURL)
	if h != "" {
		n.hosts[h] = struct{}{}
	}
}

// Supported reports whether host (any case, optional www./mobile. prefix,
// optional port) is recognized.
func (n *Normalizer) Supported(host string) bool {
	_, ok := n.hosts[hostOf(host)]
	return ok
}

// Normalize returns a locator for every supported status URL in text, in
// order of appearance. Duplicates are preserved.
func (n *Normalizer) Normalize(text string) []post.Locator {
	matches := statusRE.FindAllStringSubmatchIndex(text, -1)
	out := make([]post.Locator, 0, len(matches))
	for _, m := range matches {
		host := text[m[2]:m[3]]
		if !n.Supported(host) {
			continue
		}
		handle := text[m[4]:m[5]]
		id := text[m[6]:m[7]]
		out = append(out, post.Locator{
			Host:         hostOf(host),
			Handle:       handle,
			ID:           id,
			OriginalURL:  text[m[0]:m[1]],
			CanonicalURL: n.CanonicalURL(handle, id),
		})
	}
	return out
}

// Canonical normalizes a single URL. It is idempotent: feeding back a
// CanonicalURL yields the same CanonicalURL.
func (n *Normalizer) Canonical(raw string) (post.Locator, bool) {
	locs := n.Normalize(strings.TrimSpace(raw))
	if len(locs) == 0 {
		return post.Locator{}, false
	}
	return locs[0], true
}

// CanonicalURL builds https://<canonical-host>/<handle>/status/<id>.
func (n *Normalizer) CanonicalURL(handle, id string) string {
	return "https://" + n.canonical + "/" + handle + "/status/" + id
}

// Comment returns the free text preceding the first locator with mentions of
// the bot removed. It is empty when the message starts with the URL.
func Comment(text string, locs []post.Locator, botHandle string) string {
	if len(locs) == 0 {
		return ""
	}
	idx := strings.Index(text, locs[0].OriginalURL)
	if idx <= 0 {
		return ""
	}
	c := text[:idx]
	if botHandle = strings.TrimPrefix(strings.TrimSpace(botHandle), "@"); botHandle != "" {
		c = strings.ReplaceAll(c, "@"+botHandle, "")
	}
	return strings.TrimSpace(c)
}

// hostOf lowercases a host or extracts it from a URL, dropping the port and
// the www./mobile. prefixes.
func hostOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Host
	}
	s = strings.ToLower(s)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")
	for _, p := range []string{"www.", "mobile."} {
		s = strings.TrimPrefix(s, p)
	}
	return s
}

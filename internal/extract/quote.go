package extract

import (
	"regexp"
	"strings"

	"github.com/hyperifyio/xmirror/internal/post"
)

var (
	authorLineRE = regexp.MustCompile(`^(.*?)\s*\(@([A-Za-z0-9_]{1,50})\)\s*:?\s*(.*)$`)
	bareHandleRE = regexp.MustCompile(`^@([A-Za-z0-9_]{1,50})\s*:?\s*(.*)$`)
)

// SplitQuote detects a quoted post inlined into text after one of the
// markers. It returns the outer text, the quoted post and whether a quote
// was found. The first non-empty line after the marker names the quoted
// author as "Name (@handle)"; text following the parenthetical on that line
// starts the quoted body. Bare URL lines are dropped.
func SplitQuote(text string, markers []Marker) (string, *post.Post, bool) {
	idx, size, _ := findMarker(text, markers)
	if idx < 0 {
		return text, nil, false
	}
	outer := strings.TrimSpace(text[:idx])
	rest := text[idx+size:]

	q := &post.Post{}
	var body []string
	authorSeen := false
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		if !authorSeen {
			if line == "" {
				continue
			}
			authorSeen = true
			if m := authorLineRE.FindStringSubmatch(line); m != nil {
				q.DisplayName = strings.TrimSpace(strings.Trim(m[1], ":-–—"))
				q.Handle = m[2]
				line = m[3]
			} else if m := bareHandleRE.FindStringSubmatch(line); m != nil {
				q.Handle = m[1]
				line = m[2]
			}
			if line == "" {
				continue
			}
		}
		if isBareURL(line) {
			continue
		}
		body = append(body, line)
	}
	q.Text = normalizeWhitespace(strings.Join(body, "\n"))
	if q.DisplayName == "" {
		q.DisplayName = q.Handle
	}
	if q.DisplayName == "" && q.Text == "" {
		return text, nil, false
	}
	if q.DisplayName != "" && strings.EqualFold(outer, q.DisplayName) {
		outer = ""
	}
	return outer, q, true
}

// SplitTranslation recognizes a leading "translated from <language>" line.
// Everything after it up to the next quote marker is the translation. The
// page carries no separate original, so original repeats the translation
// followed by any quoted section for the quote heuristic.
func SplitTranslation(text string, markers []Marker, quoteMarkers []Marker) (lang, translated, original string, ok bool) {
	text = strings.TrimSpace(text)
	first, remainder, _ := strings.Cut(text, "\n")
	idx, size, _ := findMarker(first, markers)
	if idx < 0 {
		return "", "", text, false
	}
	lang = trimDecoration(first[:idx] + " " + first[idx+size:])
	remainder = strings.TrimSpace(remainder)

	head, tail := remainder, ""
	if i, _, _ := findMarker(remainder, quoteMarkers); i >= 0 {
		head, tail = remainder[:i], remainder[i:]
	}
	translated = strings.TrimSpace(head)
	if translated == "" {
		return "", "", text, false
	}
	original = translated
	if tail != "" {
		original += "\n" + tail
	}
	return lang, translated, original, true
}

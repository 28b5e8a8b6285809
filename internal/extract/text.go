package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// normalizeWhitespace collapses runs of spaces inside lines, trims every line
// and keeps at most one consecutive blank line.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Keep at most one consecutive blank
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	// trim trailing blank line
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ' ' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}

// indexFold finds the first case-insensitive occurrence of sub in s and
// returns its byte offset and byte length within s, or -1.
func indexFold(s, sub string) (int, int) {
	n := utf8.RuneCountInString(sub)
	if n == 0 {
		return -1, 0
	}
	for i := range s {
		j, count := i, 0
		for j < len(s) && count < n {
			_, size := utf8.DecodeRuneInString(s[j:])
			j += size
			count++
		}
		if count < n {
			return -1, 0
		}
		if strings.EqualFold(s[i:j], sub) {
			return i, j - i
		}
	}
	return -1, 0
}

// findMarker returns the earliest marker occurrence in s. Markers starting
// with a letter of an alphabetic script must not continue a word.
func findMarker(s string, markers []Marker) (idx, size int, m Marker) {
	idx = -1
	for _, mk := range markers {
		from := 0
		for from < len(s) {
			i, l := indexFold(s[from:], mk.Phrase)
			if i < 0 {
				break
			}
			i += from
			if wordBoundaryOK(s, i, mk.Phrase) {
				if idx < 0 || i < idx || (i == idx && l > size) {
					idx, size, m = i, l, mk
				}
				break
			}
			_, step := utf8.DecodeRuneInString(s[i:])
			from = i + step
		}
	}
	return idx, size, m
}

func wordBoundaryOK(s string, i int, phrase string) bool {
	first, _ := utf8.DecodeRuneInString(phrase)
	if !unicode.In(first, unicode.Latin, unicode.Cyrillic) {
		return true
	}
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(prev)
}

var bareURLRE = regexp.MustCompile(`^(?i:https?://)\S+$`)

func isBareURL(line string) bool {
	return bareURLRE.MatchString(strings.TrimSpace(line))
}

// trimDecoration strips emoji, punctuation and spaces around a label such as
// a language name.
func trimDecoration(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RubyDate,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 2, 2006 · 3:04 PM MST",
}

// parseTimeString accepts the timestamp spellings seen across mirrors and
// unix seconds or milliseconds. Unparsable input returns nil.
func parseTimeString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unixTime(n)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

func unixTime(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n > 1e12 {
		t = time.UnixMilli(n)
	} else {
		t = time.Unix(n, 0)
	}
	t = t.UTC()
	return &t
}

func parseTimeJSON(r gjson.Result) *time.Time {
	switch r.Type {
	case gjson.Number:
		return unixTime(r.Int())
	case gjson.String:
		return parseTimeString(r.String())
	}
	return nil
}

var countRE = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s*([KkMmКкМм]?)`)

// parseCount reads "1234", "1,234", "1 234", "1.2K" or "3M".
func parseCount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	plain := strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if n, err := strconv.ParseInt(plain, 10, 64); err == nil {
		return n, true
	}
	m := countRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(m[2]) {
	case "K", "К":
		f *= 1_000
	case "M", "М":
		f *= 1_000_000
	}
	return int64(f + 0.5), true
}

package render

import (
	"strings"
	"unicode/utf8"
)

// Separator joins blocks inside one part.
const Separator = "\n\n"

// Split packs blocks greedily into parts of at most ceiling UTF-16 units.
// A block longer than the ceiling is hard-cut; the cut never lands inside
// a rune, an HTML entity or a tag.
func Split(blocks []string, ceiling int) []string {
	kept := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b != "" {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if joined := strings.Join(kept, Separator); ceiling <= 0 || Length(joined) <= ceiling {
		return []string{joined}
	}

	var parts []string
	cur := ""
	for _, b := range kept {
		candidate := b
		if cur != "" {
			candidate = cur + Separator + b
		}
		if Length(candidate) <= ceiling {
			cur = candidate
			continue
		}
		if cur != "" {
			parts = append(parts, cur)
			cur = ""
		}
		for Length(b) > ceiling {
			head, tail := hardCut(b, ceiling)
			parts = append(parts, head)
			b = tail
		}
		cur = b
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	return parts
}

// hardCut returns the longest prefix of s within limit units that does not
// end inside a rune, an entity or a tag, and the remainder. Tags still open
// at the cut are closed at the end of the prefix and reopened at the start
// of the remainder. At least one text token is always consumed.
func hardCut(s string, limit int) (string, string) {
	var stack, cutStack []openTag
	units, pos, cut := 0, 0, 0
	for pos < len(s) && (units <= limit || cut == 0) {
		text := nextToken(s[pos:])
		opening := false
		if name, closing, ok := parseTag(text); ok {
			switch {
			case closing:
				stack = popTag(stack, name)
			case !selfClosing(name, text):
				stack = append(stack, openTag{name: name, raw: text})
				opening = true
			}
		}
		units += Length(text)
		pos += len(text)
		if opening {
			continue
		}
		if units+Length(closeTags(stack)) <= limit || cut == 0 && !isTagToken(text) {
			cut = pos
			cutStack = append(cutStack[:0], stack...)
			if units+Length(closeTags(stack)) > limit {
				break
			}
		}
	}
	if cut == 0 {
		return s, ""
	}
	return s[:cut] + closeTags(cutStack), openTags(cutStack) + s[cut:]
}

type openTag struct {
	name string
	raw  string
}

// nextToken returns a whole tag, a whole entity or a single rune.
func nextToken(s string) string {
	switch s[0] {
	case '<':
		if end := strings.IndexByte(s, '>'); end > 0 {
			return s[:end+1]
		}
	case '&':
		if end := strings.IndexByte(s, ';'); end > 1 && end <= 10 && !strings.ContainsAny(s[1:end], " \n&<") {
			return s[:end+1]
		}
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}

func isTagToken(tok string) bool {
	return len(tok) > 2 && tok[0] == '<' && tok[len(tok)-1] == '>'
}

// parseTag returns the lowercased element name of tok and whether it is a
// closing tag.
func parseTag(tok string) (name string, closing bool, ok bool) {
	if !isTagToken(tok) {
		return "", false, false
	}
	inner := tok[1 : len(tok)-1]
	if strings.HasPrefix(inner, "/") {
		closing = true
		inner = inner[1:]
	}
	end := strings.IndexAny(inner, " \t\n/")
	if end < 0 {
		end = len(inner)
	}
	name = strings.ToLower(inner[:end])
	return name, closing, name != ""
}

func selfClosing(name, tok string) bool {
	return name == "br" || strings.HasSuffix(tok, "/>")
}

func popTag(stack []openTag, name string) []openTag {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].name == name {
			return stack[:i]
		}
	}
	return stack
}

func closeTags(stack []openTag) string {
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteString("</" + stack[i].name + ">")
	}
	return b.String()
}

func openTags(stack []openTag) string {
	var b strings.Builder
	for _, t := range stack {
		b.WriteString(t.raw)
	}
	return b.String()
}

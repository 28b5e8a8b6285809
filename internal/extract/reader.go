package extract

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/hyperifyio/xmirror/internal/post"
)

var readerTitleRE = regexp.MustCompile(`^(.+?) (?:on|в|en|auf|sur|su|no|w|op) (?:X|Twitter):\s*"(.*)"\s*/\s*(?:X|Twitter)$`)

// Reader parses the plain-text header block a reader proxy prints in
// front of the page ("Title: ...", "Published Time: ...").
type Reader struct{}

func (Reader) Name() string { return "reader" }

func (Reader) Extract(_ context.Context, doc *Document, loc post.Locator) *post.Post {
	if doc.JSON || !bytes.HasPrefix(bytes.TrimSpace(doc.Raw), []byte("Title:")) {
		return nil
	}
	p := &post.Post{Handle: loc.Handle}
	sc := bufio.NewScanner(bytes.NewReader(doc.Raw))
	sc.Buffer(make([]byte, 0, 64*1024), len(doc.Raw)+1)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Title":
			if m := readerTitleRE.FindStringSubmatch(value); m != nil {
				p.DisplayName = strings.TrimSpace(m[1])
				p.Text = strings.ReplaceAll(m[2], `\n`, "\n")
			}
		case "Published Time":
			p.CreatedAt = parseTimeString(value)
		case "Markdown Content":
			// The rendered body follows; headers are done.
			return finishReader(p)
		}
	}
	return finishReader(p)
}

func finishReader(p *post.Post) *post.Post {
	p.Text = normalizeWhitespace(p.Text)
	if p.DisplayName == "" && p.Text == "" {
		return nil
	}
	return p
}

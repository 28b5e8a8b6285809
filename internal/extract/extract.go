// Package extract turns a fetched page into a post.Post by running an
// ordered list of strategies over it.
package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"

	"github.com/hyperifyio/xmirror/internal/fetch"
	"github.com/hyperifyio/xmirror/internal/post"
)

// Document is a fetched body parsed once and shared by all strategies.
type Document struct {
	Raw []byte
	// JSON is set when the whole body is a JSON document.
	JSON bool
	// Root and DOM are nil for JSON bodies.
	Root *html.Node
	DOM  *goquery.Document
}

// Parse classifies body as JSON or HTML. Plain text parses as HTML with a
// single text node, which the reader strategy handles.
func Parse(body []byte) *Document {
	doc := &Document{Raw: body}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && gjson.ValidBytes(trimmed) {
		doc.JSON = true
		return doc
	}
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil || root == nil {
		return doc
	}
	doc.Root = root
	doc.DOM = goquery.NewDocumentFromNode(root)
	return doc
}

// Payloads returns every embedded JSON value: the body itself for JSON
// documents, otherwise script contents that are JSON or assign a JSON
// object to a variable.
func (d *Document) Payloads() []gjson.Result {
	if d.JSON {
		return []gjson.Result{gjson.ParseBytes(d.Raw)}
	}
	if d.Root == nil {
		return nil
	}
	var out []gjson.Result
	var dfs func(*html.Node)
	dfs = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "script") {
			if v, ok := scriptJSON(textOf(n)); ok {
				out = append(out, v)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
		}
	}
	dfs(d.Root)
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func scriptJSON(s string) (gjson.Result, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return gjson.Result{}, false
	}
	if (s[0] == '{' || s[0] == '[') && gjson.Valid(s) {
		return gjson.Parse(s), true
	}
	// window.__STATE__ = {...};
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return gjson.Result{}, false
	}
	open := strings.IndexByte(s[eq:], '{')
	end := strings.LastIndexByte(s, '}')
	if open < 0 || end < eq+open {
		return gjson.Result{}, false
	}
	candidate := s[eq+open : end+1]
	if !gjson.Valid(candidate) {
		return gjson.Result{}, false
	}
	return gjson.Parse(candidate), true
}

// Strategy produces a possibly partial post, or nil when it found nothing.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, doc *Document, loc post.Locator) *post.Post
}

// Result is the extracted post plus the name of the strategy that won.
type Result struct {
	Post     *post.Post
	Strategy string
}

// Extractor runs strategies in order. The first complete post wins; when
// none is complete the first partial one is filled from later ones.
type Extractor struct {
	Strategies []Strategy
	// QuoteMarkers defaults to QuoteMarkers.
	QuoteMarkers []Marker
}

// New returns the default chain: structured data, the syndication
// endpoint (only when syndication is non-nil), OpenGraph metadata and
// the reader-proxy text format.
func New(syndication *Syndication) *Extractor {
	strategies := []Strategy{Structured{}}
	if syndication != nil {
		strategies = append(strategies, syndication)
	}
	strategies = append(strategies, Meta{}, Reader{})
	return &Extractor{Strategies: strategies}
}

// Extract never fails: an empty page yields a post carrying only the
// locator's handle and canonical URL.
func (e *Extractor) Extract(ctx context.Context, res *fetch.Result, loc post.Locator) Result {
	var body []byte
	if res != nil {
		body = res.Body
	}
	doc := Parse(body)
	logger := log.With().Str("post", loc.CanonicalURL).Logger()

	var best *post.Post
	name := "none"
	for _, s := range e.Strategies {
		if ctx.Err() != nil {
			break
		}
		p := s.Extract(ctx, doc, loc)
		if p == nil {
			continue
		}
		logger.Debug().Str("strategy", s.Name()).Bool("complete", p.Complete()).Msg("strategy result")
		if best == nil {
			best, name = p, s.Name()
		} else {
			best.FillMissing(p)
		}
		if best.Complete() {
			break
		}
	}
	if best == nil {
		best = &post.Post{}
	}
	e.finalize(best, loc)
	return Result{Post: best, Strategy: name}
}

func (e *Extractor) finalize(p *post.Post, loc post.Locator) {
	p.Handle = strings.TrimPrefix(strings.TrimSpace(p.Handle), "@")
	if p.Handle == "" {
		p.Handle = loc.Handle
	}
	if loc.CanonicalURL != "" {
		p.URL = loc.CanonicalURL
	}
	p.Text = strings.TrimSpace(p.Text)
	markers := e.QuoteMarkers
	if len(markers) == 0 {
		markers = QuoteMarkers
	}
	if p.Quoted == nil {
		if outer, q, ok := SplitQuote(p.Text, markers); ok {
			if outer == p.DisplayName || outer == "@"+p.Handle {
				outer = ""
			}
			p.Text = outer
			p.Quoted = q
		}
	}
	p.Media = dedupeMedia(p.Media)
	if p.Quoted != nil {
		p.Quoted.Handle = strings.TrimPrefix(p.Quoted.Handle, "@")
		p.Quoted.Media = dedupeMedia(p.Quoted.Media)
		p.Quoted.Quoted = nil
	}
}

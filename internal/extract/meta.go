package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/xmirror/internal/post"
)

// Meta reads OpenGraph and Twitter-card tags plus the poll and translation
// markup some mirrors render into the page body.
type Meta struct {
	// TranslationMarkers defaults to TranslationMarkers.
	TranslationMarkers []Marker
	// QuoteMarkers defaults to QuoteMarkers.
	QuoteMarkers []Marker
}

func (Meta) Name() string { return "meta" }

type metaTag struct{ key, value string }

var (
	titleRE            = regexp.MustCompile(`^(.*?)\s*\(@([A-Za-z0-9_]{1,50})\)`)
	numberedImgRE      = regexp.MustCompile(`^(?:og|twitter):image:(\d+)$`)
	percentRE          = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)
	votesRE            = regexp.MustCompile(`(?i)(\d[\d,. ]*\d|\d)\s*([KkMmКкМм]?)\s*(?:votes?|голос\p{L}*|голоси|votos|voti|stimmen|głos\p{L}*|stemmen|oy|票|표)`)
	videoMetaKeys      = []string{"og:video:secure_url", "og:video:url", "og:video", "twitter:player:stream"}
	imageMetaKeys      = []string{"og:image", "twitter:image", "twitter:image:src"}
	titleMetaKeys      = []string{"og:title", "twitter:title"}
	descMetaKeys       = []string{"og:description", "twitter:description", "description"}
	publishedKeys      = []string{"article:published_time", "og:article:published_time", "date"}
	pollSelector       = `[data-testid="poll"], .poll`
	optionSelector     = `.poll-meter, [data-testid="pollOption"], .poll-option`
	pollStatusSelector = `.poll-info, .poll-status, [data-testid="pollStatus"]`
)

func (m Meta) Extract(_ context.Context, doc *Document, loc post.Locator) *post.Post {
	if doc.DOM == nil {
		return nil
	}
	tags := metaTags(doc.DOM)
	title := metaValue(tags, titleMetaKeys...)
	desc := metaValue(tags, descMetaKeys...)
	media := metaMedia(tags)
	poll := pollFromHTML(doc.DOM)
	if title == "" && desc == "" && len(media) == 0 && poll == nil {
		return nil
	}

	p := &post.Post{Media: media, Poll: poll}
	if mt := titleRE.FindStringSubmatch(title); mt != nil {
		p.DisplayName = strings.TrimSpace(mt[1])
		p.Handle = mt[2]
	} else {
		p.DisplayName = strings.TrimSpace(title)
	}
	if p.Handle == "" {
		p.Handle = loc.Handle
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Handle
	}
	p.CreatedAt = parseTimeString(metaValue(tags, publishedKeys...))

	text := normalizeWhitespace(desc)
	if tr, lang := translationBlock(doc.DOM); tr != "" {
		p.TranslatedText, p.SourceLanguage = tr, lang
	} else {
		trMarkers, qMarkers := m.TranslationMarkers, m.QuoteMarkers
		if len(trMarkers) == 0 {
			trMarkers = TranslationMarkers
		}
		if len(qMarkers) == 0 {
			qMarkers = QuoteMarkers
		}
		if lang, tr, original, ok := SplitTranslation(text, trMarkers, qMarkers); ok {
			p.SourceLanguage, p.TranslatedText, text = lang, tr, original
		}
	}
	p.Text = text
	return p
}

func metaTags(dom *goquery.Document) []metaTag {
	var tags []metaTag
	dom.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		value, _ := s.Attr("content")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			tags = append(tags, metaTag{key, value})
		}
	})
	return tags
}

func metaValue(tags []metaTag, keys ...string) string {
	for _, k := range keys {
		for _, t := range tags {
			if t.key == k {
				return t.value
			}
		}
	}
	return ""
}

// metaMedia assembles photos and at most one video. Extra numbered images
// are only considered when no video is present and never when they are
// video preview frames.
func metaMedia(tags []metaTag) []post.MediaItem {
	var items []post.MediaItem
	video := metaValue(tags, videoMetaKeys...)
	addPhoto := func(u string) {
		if u == "" || isProfileImage(u) || (video != "" && isVideoThumb(u)) {
			return
		}
		if parts := ExpandMosaic(u); parts != nil {
			for _, p := range parts {
				items = append(items, post.MediaItem{URL: p, Kind: post.Photo})
			}
			return
		}
		items = append(items, post.MediaItem{URL: u, Kind: post.Photo})
	}

	addPhoto(metaValue(tags, imageMetaKeys...))
	if video == "" {
		for _, t := range tags {
			if (t.key == "og:image" || numberedImgRE.MatchString(t.key)) && !isVideoThumb(t.value) {
				addPhoto(t.value)
			}
		}
	}
	if video != "" {
		items = append(items, post.MediaItem{URL: video, Kind: post.Video})
	}
	return dedupeMedia(items)
}

func pollFromHTML(dom *goquery.Document) *post.Poll {
	box := dom.Find(pollSelector).First()
	if box.Length() == 0 {
		return nil
	}
	p := &post.Poll{
		Question: collapseSpaces(strings.TrimSpace(box.Find(`.poll-question, [data-testid="pollQuestion"]`).First().Text())),
	}
	statusSel := box.Find(pollStatusSelector)
	opts := box.Find(optionSelector)
	if opts.Length() == 0 {
		opts = box.ChildrenFiltered("div").Not(pollStatusSelector).Not(`.poll-question, [data-testid="pollQuestion"]`)
	}
	opts.Each(func(_ int, s *goquery.Selection) {
		raw := collapseSpaces(strings.TrimSpace(s.Text()))
		if raw == "" {
			return
		}
		label := collapseSpaces(strings.TrimSpace(s.Find(`.poll-choice-option, [data-testid="pollOptionLabel"]`).Text()))
		value := s.Find(`.poll-choice-value, [data-testid="pollOptionValue"]`).Text()
		if value == "" {
			value = raw
		}
		opt := post.PollOption{Text: label}
		if m := percentRE.FindStringSubmatch(value); m != nil {
			if f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
				opt.Percent = post.Float64(f)
			}
		}
		opt.Votes = parseVotes(raw)
		if opt.Text == "" {
			opt.Text = strings.TrimSpace(votesRE.ReplaceAllString(percentRE.ReplaceAllString(raw, ""), ""))
		}
		if opt.Text != "" {
			p.Options = append(p.Options, opt)
		}
	})
	if len(p.Options) == 0 {
		return nil
	}
	status := collapseSpaces(strings.TrimSpace(statusSel.Text()))
	p.Status, p.TimeLeft = classifyPollStatus(status)
	p.TotalVotes = parseVotes(status)
	fillPercentages(p)
	return p
}

func parseVotes(s string) *int64 {
	m := votesRE.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	n, ok := parseCount(m[1] + m[2])
	if !ok {
		return nil
	}
	return post.Int64(n)
}

// classifyPollStatus maps a status line to a state. For time-remaining the
// segment naming the remainder is returned as well.
func classifyPollStatus(s string) (post.PollStatus, string) {
	lower := strings.ToLower(s)
	for _, k := range pollEndedKeywords {
		if strings.Contains(lower, k) {
			return post.PollEnded, ""
		}
	}
	for _, k := range pollTimeKeywords {
		if !strings.Contains(lower, k) {
			continue
		}
		for _, seg := range strings.FieldsFunc(s, func(r rune) bool { return r == '·' || r == '•' || r == '|' }) {
			if strings.Contains(strings.ToLower(seg), k) {
				return post.PollTimeRemaining, strings.TrimSpace(seg)
			}
		}
		return post.PollTimeRemaining, strings.TrimSpace(s)
	}
	return post.PollActive, ""
}

// translationBlock reads a dedicated translation element. The language is
// taken from its source line with the translation phrase removed.
func translationBlock(dom *goquery.Document) (string, string) {
	box := dom.Find(`.tweet-translation, [data-testid="tweetTranslation"]`).First()
	if box.Length() == 0 {
		return "", ""
	}
	src := collapseSpaces(strings.TrimSpace(box.Find(`.translation-source, [data-testid="translationSource"]`).Text()))
	body := box.Find(`.translation-text, [data-testid="translationText"]`)
	var text string
	if body.Length() > 0 {
		text = body.Text()
	} else {
		text = strings.Replace(box.Text(), src, "", 1)
	}
	text = normalizeWhitespace(text)
	lang := src
	if idx, size, _ := findMarker(src, TranslationMarkers); idx >= 0 {
		lang = src[:idx] + " " + src[idx+size:]
	}
	return text, trimDecoration(lang)
}
